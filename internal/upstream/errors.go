package upstream

import (
	"errors"
	"fmt"
)

// 最多读取的错误响应体大小，避免异常服务端返回超大正文。
const maxErrBodySize = 64 << 10

var (
	// ErrInvalidURL 表示 URL 无法解析或缺少 http/https scheme 与 host。
	ErrInvalidURL = errors.New("invalid url")
	// ErrMustNotBeZero 表示限速参数非法。
	ErrMustNotBeZero = errors.New("must be greater than zero")
	// ErrWaitingFailed 表示限速器等待失败。
	ErrWaitingFailed = errors.New("limiter waiting failed")
	// ErrContextEnded 表示请求在限速等待前后被取消。
	ErrContextEnded = errors.New("throttle context ended")
)

// StatusError 描述一次非 2xx 响应。HEAD 请求没有 Body。
type StatusError struct {
	URL        string
	Method     string
	StatusCode int
	Reason     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.StatusCode, e.Reason)
}
