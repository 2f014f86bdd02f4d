package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 是 TOML 文件映射的整体结构，对应一次下载/镜像运行的全部选项。
type Config struct {
	Logging           bool     `mapstructure:"Logging"`
	Debug             bool     `mapstructure:"Debug"`
	CacheDir          string   `mapstructure:"CacheDir" validate:"required"`
	LogLevel          string   `mapstructure:"LogLevel" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat         string   `mapstructure:"LogFormat" validate:"oneof=text json"`
	LogFilePath       string   `mapstructure:"LogFilePath"`
	LogMaxSize        int      `mapstructure:"LogMaxSize" validate:"gte=0"`
	LogMaxBackups     int      `mapstructure:"LogMaxBackups" validate:"gte=0"`
	LogCompress       bool     `mapstructure:"LogCompress"`
	UpstreamTimeout   Duration `mapstructure:"UpstreamTimeout"`
	RequestsPerSecond int      `mapstructure:"RequestsPerSecond" validate:"gte=0"`
	Burst             int      `mapstructure:"Burst" validate:"gte=0"`
	UserAgent         string   `mapstructure:"UserAgent"`
	MirrorPort        int      `mapstructure:"MirrorPort" validate:"gte=1,lte=65535"`

	// Source 记录实际读取的配置文件，未读取文件时为空。
	Source string `mapstructure:"-"`
}

// ThrottleEnabled 表示是否需要对上游请求限速。
func (c Config) ThrottleEnabled() bool {
	return c.RequestsPerSecond > 0
}

// LogFormatJSON 表示日志是否使用 JSON 结构化输出。
func (c Config) LogFormatJSON() bool {
	return strings.EqualFold(c.LogFormat, "json")
}
