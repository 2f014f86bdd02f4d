package diag

import (
	"errors"
	"fmt"
	"io"

	"go.trai.ch/zerr"
)

// Kind 区分错误来源，Distinguished 标记才决定展示方式。
type Kind int

const (
	// KindOrdinary 未分类错误，保留完整报告。
	KindOrdinary Kind = iota
	// KindExpected 预期内的领域错误：非法 URL、非 2xx、JSON 解析失败、服务端状态消息。
	KindExpected
	// KindTransport 网络层失败，没有结构化响应体。
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindExpected:
		return "expected"
	case KindTransport:
		return "transport"
	default:
		return "ordinary"
	}
}

// DefaultCategory 是单行渲染时的前缀。
const DefaultCategory = "Error"

// Error 是携带显式 Distinguished 标记的错误值，由 Reporter.Raise 返回并沿调用栈正常传播。
type Error struct {
	Kind          Kind
	Category      string
	Message       string
	URL           string
	Source        string
	Distinguished bool
	Err           error

	trace *zerr.Error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Format 实现 fmt.Formatter：%v/%s 只输出消息，%+v 输出完整报告
// （类别、URL、来源文件、原因链以及构造时的调用栈）。
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			e.writeReport(s)
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Message)
	case 'q':
		fmt.Fprintf(s, "%q", e.Message)
	}
}

func (e *Error) writeReport(w io.Writer) {
	io.WriteString(w, e.Message)
	fmt.Fprintf(w, "\nkind: %s", e.Kind)
	if e.URL != "" {
		fmt.Fprintf(w, "\nurl: %s", e.URL)
	}
	if e.Source != "" {
		fmt.Fprintf(w, "\nsource: %s", e.Source)
	}
	if e.Err != nil {
		fmt.Fprintf(w, "\ncaused by: %+v", e.Err)
	}
	if e.trace != nil {
		io.WriteString(w, e.trace.StackTrace())
	}
}

func (e *Error) category() string {
	if e.Category == "" {
		return DefaultCategory
	}
	return e.Category
}

// Expected 构造一个预期内的 distinguished 错误。
func Expected(message string) *Error {
	return &Error{Kind: KindExpected, Message: message, Distinguished: true, trace: captureStack()}
}

// Transport 构造一个携带 URL 与底层原因的传输层 distinguished 错误。
func Transport(message, url string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, URL: url, Distinguished: true, Err: cause, trace: captureStack()}
}

// captureStack 记录构造位置的调用栈，仅在 %+v 时格式化。
func captureStack() *zerr.Error {
	z, ok := zerr.New("").(*zerr.Error)
	if !ok {
		return nil
	}
	return z.WithStack()
}

// IsDistinguished 判断错误链中是否存在 distinguished 错误。
func IsDistinguished(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Distinguished
}

// KindOf 返回错误链中第一个 *Error 的 Kind，不存在时为 KindOrdinary。
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindOrdinary
}
