package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hapi-server/hapifetch/internal/diag"
	"github.com/hapi-server/hapifetch/internal/upstream"
)

const unknownReason = "unknown error"

// classify 把传输层失败转换为 distinguished 错误，消息格式与 HAPI 客户端一致：
// 非法 URL、服务端 JSON 状态消息、带/不带正文的 HTTP 错误以及其它网络失败。
func classify(err error, rawURL string) *diag.Error {
	if errors.Is(err, upstream.ErrInvalidURL) {
		e := diag.Expected(fmt.Sprintf("'%s' is not a valid URL", rawURL))
		e.URL = rawURL
		e.Err = err
		return e
	}

	var serr *upstream.StatusError
	if errors.As(err, &serr) {
		var msg string
		if status, ok := statusMessage(serr.Body); ok {
			msg = fmt.Sprintf("\n%s\n  %s\n", rawURL, status)
		} else if serr.Body != "" {
			msg = fmt.Sprintf("\"HTTP %d - %s\" returned by %s. Response body:\n%s",
				serr.StatusCode, serr.Reason, rawURL, serr.Body)
		} else {
			msg = fmt.Sprintf("\"HTTP %d - %s\" returned by %s.", serr.StatusCode, serr.Reason, rawURL)
		}
		e := diag.Expected(msg)
		e.URL = rawURL
		e.Err = err
		return e
	}

	msg := fmt.Sprintf("Error message: \"%s\" when trying to read %s.", transportReason(err), rawURL)
	return diag.Transport(msg, rawURL, err)
}

// statusMessage 提取 HAPI 错误正文 {"status":{"message":...}} 中的消息。
func statusMessage(body string) (string, bool) {
	if strings.TrimSpace(body) == "" {
		return "", false
	}
	var doc struct {
		Status *struct {
			Message *string `json:"message"`
		} `json:"status"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return "", false
	}
	if doc.Status == nil || doc.Status.Message == nil {
		return "", false
	}
	return *doc.Status.Message, true
}

// transportReason 取出最内层的网络错误描述，缺省时为 "unknown error"。
func transportReason(err error) string {
	if err == nil {
		return unknownReason
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		err = uerr.Err
	}
	if reason := strings.TrimSpace(err.Error()); reason != "" {
		return reason
	}
	return unknownReason
}
