package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/hapi-server/hapifetch/internal/diag"
	"github.com/hapi-server/hapifetch/internal/version"
)

// DefaultPath 是未显式指定配置文件时尝试读取的路径。
const DefaultPath = "hapifetch.toml"

// EnvPrefix 是环境变量覆盖的前缀，例如 HAPIFETCH_CACHEDIR。
const EnvPrefix = "HAPIFETCH"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// path 为空且默认文件不存在时，仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetConfigFile(path)

	source := ""
	if _, statErr := os.Stat(path); statErr == nil || explicit {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
		source = path
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取配置失败: %w", statErr)
	}

	if source != "" {
		warnUnknownKeys(v, source)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.Source = source

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.CacheDir = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Logging", false)
	v.SetDefault("Debug", false)
	v.SetDefault("CacheDir", "./hapi-data")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("RequestsPerSecond", 0)
	v.SetDefault("Burst", 1)
	v.SetDefault("UserAgent", "")
	v.SetDefault("MirrorPort", 5000)
}

func applyDefaults(c *Config) {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.UpstreamTimeout.DurationValue() == 0 {
		c.UpstreamTimeout = Duration(30 * time.Second)
	}
	if c.RequestsPerSecond > 0 && c.Burst == 0 {
		c.Burst = 1
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = version.UserAgent()
	}
	if c.MirrorPort == 0 {
		c.MirrorPort = 5000
	}
}

// knownKeys 返回 Config 中所有 mapstructure 键（小写，与 viper 一致）。
func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		keys[strings.ToLower(tag)] = struct{}{}
	}
	return keys
}

// UnknownKeys 列出配置文件中无法识别的键，按字典序返回。
func UnknownKeys(v *viper.Viper) []string {
	known := knownKeys()
	var unknown []string
	for _, key := range v.AllKeys() {
		root := strings.SplitN(key, ".", 2)[0]
		if _, ok := known[root]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// warnUnknownKeys 对每个未知键给出一条简短警告，而不是拒绝整个配置。
func warnUnknownKeys(v *viper.Viper, source string) {
	for _, key := range UnknownKeys(v) {
		diag.Default().WarnFrom(fmt.Sprintf("Ignoring invalid keyword option %q.", key), source)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
