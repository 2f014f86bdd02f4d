package diag

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
)

// Event 是一次待渲染的警告，创建后只会被当前处理器消费一次。
type Event struct {
	Message       string
	Distinguished bool
	Source        string
}

// hook 是被“武装”的展示覆盖，记录武装时的执行环境。
type hook struct {
	ctx Context
}

// Reporter 是进程级的诊断输出设施。
//
// 状态机：Idle → Armed → Rendered → Reset(Idle)。覆盖在渲染前即被取下，
// 因此即便渲染本身 panic，也不会残留在后续无关的错误上。
type Reporter struct {
	out    io.Writer
	detect func() Context
	color  bool
	debug  bool
	exit   func(int)

	warnArmed atomic.Bool
	errHook   atomic.Pointer[hook]
}

// Option 调整 Reporter 的行为。
type Option func(*Reporter)

// WithDetector 替换执行环境探测函数，主要用于测试。
func WithDetector(detect func() Context) Option {
	return func(r *Reporter) {
		if detect != nil {
			r.detect = detect
		}
	}
}

// WithColor 强制开启或关闭 ANSI 颜色。
func WithColor(enabled bool) Option {
	return func(r *Reporter) {
		r.color = enabled
	}
}

// WithDebug 为 true 时 distinguished 错误同样输出完整报告。
func WithDebug(debug bool) Option {
	return func(r *Reporter) {
		r.debug = debug
	}
}

// WithExit 替换 Recover 使用的退出函数。
func WithExit(exit func(int)) Option {
	return func(r *Reporter) {
		if exit != nil {
			r.exit = exit
		}
	}
}

// NewReporter 创建写入 out 的 Reporter，out 通常是 os.Stderr。
func NewReporter(out io.Writer, opts ...Option) *Reporter {
	if out == nil {
		out = os.Stderr
	}
	r := &Reporter{
		out:    out,
		detect: Detect,
		color:  colorEnabled(out),
		exit:   os.Exit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var std atomic.Pointer[Reporter]

func init() {
	std.Store(NewReporter(os.Stderr))
}

// Default 返回进程级 Reporter。
func Default() *Reporter {
	return std.Load()
}

// SetDefault 替换进程级 Reporter。
func SetDefault(r *Reporter) {
	if r != nil {
		std.Store(r)
	}
}

// Warn 通过进程级 Reporter 输出一条 distinguished 警告。
func Warn(message string) {
	Default().warnAt(message, 3)
}

// Fail 通过进程级 Reporter 抛出一个 distinguished 错误。
func Fail(message string) error {
	e := Expected(message)
	e.Source = callerFile(2)
	return Default().Raise(e)
}

// Context 返回当前执行环境，每次调用重新探测。
func (r *Reporter) Context() Context {
	return r.detect()
}

// Armed 报告当前是否存在尚未触发的展示覆盖。
func (r *Reporter) Armed() bool {
	return r.warnArmed.Load() || r.errHook.Load() != nil
}

// Warn 输出 `Warning in <调用方文件>: <message>`。
func (r *Reporter) Warn(message string) {
	r.warnAt(message, 3)
}

// WarnFrom 与 Warn 相同，但由调用方显式给出来源文件。
func (r *Reporter) WarnFrom(message, file string) {
	r.Emit(Event{Message: message, Distinguished: true, Source: filepath.Base(file)})
}

func (r *Reporter) warnAt(message string, skip int) {
	r.Emit(Event{Message: message, Distinguished: true, Source: callerFile(skip)})
}

// Emit 武装警告覆盖、渲染一次并立即复位；非 distinguished 事件走默认格式。
// 警告格式与执行环境无关，只记录武装状态。
func (r *Reporter) Emit(ev Event) {
	r.warnArmed.Store(true)
	defer r.warnArmed.Store(false)
	defer r.flush()

	r.renderWarning(ev)
}

// Fail 武装当前执行环境的错误覆盖，并返回一个 distinguished 错误供调用方向上传播。
func (r *Reporter) Fail(message string) error {
	e := Expected(message)
	e.Source = callerFile(2)
	return r.Raise(e)
}

// Raise 武装错误覆盖并原样返回 e；渲染发生在 Handle 或 Recover 中。
func (r *Reporter) Raise(e *Error) error {
	if e == nil {
		return nil
	}
	if e.Source == "" {
		e.Source = callerFile(2)
	}
	r.errHook.Store(&hook{ctx: r.detect()})
	return e
}

// Handle 在进程边界消费错误：先复位覆盖，再渲染并返回退出码。
// 覆盖已被之前的 Handle 消费时，按当前执行环境渲染，distinguished 错误仍只输出一行。
func (r *Reporter) Handle(err error) int {
	h := r.errHook.Swap(nil)
	if err == nil {
		return 0
	}
	defer r.flush()

	r.renderFailure(r.contextOf(h), err)
	return 1
}

// Recover 作为 main 中的 defer 使用，相当于进程级未捕获异常钩子：
// distinguished panic 只输出一行并退出，其它 panic 原样重新抛出，保留 Go 运行时的完整堆栈。
func (r *Reporter) Recover() {
	p := recover()
	if p == nil {
		return
	}
	h := r.errHook.Swap(nil)

	err, ok := p.(error)
	if !ok || r.debug || !IsDistinguished(err) {
		panic(p)
	}

	r.renderFailure(r.contextOf(h), err)
	r.flush()
	r.exit(1)
}

func (r *Reporter) contextOf(h *hook) Context {
	if h != nil {
		return h.ctx
	}
	return r.detect()
}

func (r *Reporter) flush() {
	switch w := r.out.(type) {
	case interface{ Flush() error }:
		_ = w.Flush()
	case interface{ Sync() error }:
		_ = w.Sync()
	}
}

func callerFile(skip int) string {
	_, file, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return filepath.Base(file)
}
