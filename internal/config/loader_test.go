package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hapi-server/hapifetch/internal/diag"
)

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
CacheDir = "./data"
UpstreamTimeout = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsIntegerSeconds(t *testing.T) {
	path := writeTempConfig(t, "UpstreamTimeout = 12\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.UpstreamTimeout.DurationValue() != 12*time.Second {
		t.Fatalf("整数秒应被解析为 12s，得到 %s", cfg.UpstreamTimeout.DurationValue())
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("显式指定的配置文件不存在时应返回错误")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("获取工作目录失败: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("切换目录失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("无配置文件时应使用默认值: %v", err)
	}
	if cfg.Logging {
		t.Fatalf("Logging 默认应关闭")
	}
	if cfg.Source != "" {
		t.Fatalf("未读取文件时 Source 应为空，得到 %q", cfg.Source)
	}
	if !filepath.IsAbs(cfg.CacheDir) || filepath.Base(cfg.CacheDir) != "hapi-data" {
		t.Fatalf("CacheDir 应解析为绝对路径，得到 %s", cfg.CacheDir)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HAPIFETCH_LOGGING", "true")
	t.Setenv("HAPIFETCH_CACHEDIR", filepath.Join(t.TempDir(), "env-cache"))

	path := writeTempConfig(t, "LogLevel = \"warn\"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if !cfg.Logging {
		t.Fatalf("环境变量应覆盖 Logging")
	}
	if filepath.Base(cfg.CacheDir) != "env-cache" {
		t.Fatalf("环境变量应覆盖 CacheDir，得到 %s", cfg.CacheDir)
	}
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	prev := diag.Default()
	t.Cleanup(func() { diag.SetDefault(prev) })

	buf := &bytes.Buffer{}
	diag.SetDefault(diag.NewReporter(buf, diag.WithColor(false)))

	if _, err := Load(testConfigPath(t, "unknown.toml")); err != nil {
		t.Fatalf("未知键不应导致失败: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `Warning in unknown.toml: Ignoring invalid keyword option "cachdir".`) {
		t.Fatalf("应对未知键给出警告，得到 %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("只应出现一条警告，得到 %q", out)
	}
}
