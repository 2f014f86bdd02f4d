package logging

import (
	"bytes"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hapi-server/hapifetch/internal/diag"
)

// CallerFormatter 输出 `<调用函数名>(): <消息>`，每条日志一行。
// 需要 logger.SetReportCaller(true) 才能拿到调用方。
type CallerFormatter struct{}

// Format 实现 logrus.Formatter。
func (f *CallerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	if entry.HasCaller() {
		b.WriteString(ShortFuncName(entry.Caller.Function))
		b.WriteString("(): ")
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// ShortFuncName 把 runtime 的全限定函数名裁剪为方法名，闭包归属到外层函数。
func ShortFuncName(full string) string {
	name := full
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	parts := strings.Split(name, ".")
	for len(parts) > 1 && isClosureSegment(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	return parts[len(parts)-1]
}

func isClosureSegment(seg string) bool {
	if strings.HasPrefix(seg, "func") {
		rest := strings.TrimPrefix(seg, "func")
		return rest == "" || strings.Trim(rest, "0123456789") == ""
	}
	return seg != "" && strings.Trim(seg, "0123456789") == ""
}

// TrimHook 在 notebook 环境下从日志消息中去掉缓存目录，保持输出简短。
type TrimHook struct {
	CacheDir string
	Detect   func() diag.Context
}

// Levels 实现 logrus.Hook。
func (h *TrimHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 实现 logrus.Hook；执行环境每次重新探测。
func (h *TrimHook) Fire(entry *logrus.Entry) error {
	if h.CacheDir == "" {
		return nil
	}
	detect := h.Detect
	if detect == nil {
		detect = diag.Detect
	}
	if detect() != diag.ContextNotebook {
		return nil
	}
	dir := strings.TrimRight(h.CacheDir, "/")
	entry.Message = strings.ReplaceAll(entry.Message, dir+"/", "")
	entry.Message = strings.ReplaceAll(entry.Message, dir, "")
	return nil
}
