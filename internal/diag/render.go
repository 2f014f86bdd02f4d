package diag

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	warningPrefix          = "Warning in "
	defaultWarningCategory = "UserWarning"
)

// colorEnabled 仅在输出为终端且未设置 NO_COLOR 时启用 ANSI 颜色。
func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// red 给前缀着色；关闭颜色时原样返回，保证字面前缀始终存在。
func red(s string, enabled bool) string {
	if !enabled {
		return s
	}
	p := termenv.ANSI
	return p.String(s).Foreground(p.Color("1")).String()
}

func (r *Reporter) renderWarning(ev Event) {
	if ev.Distinguished {
		fmt.Fprintf(r.out, "%s: %s\n", red(warningPrefix+ev.Source, r.color), ev.Message)
		return
	}
	fmt.Fprintf(r.out, "%s: %s: %s\n", ev.Source, defaultWarningCategory, ev.Message)
}

// renderFailure 根据执行环境渲染错误；distinguished 错误只输出一行。
func (r *Reporter) renderFailure(ctx Context, err error) {
	var de *Error
	if r.debug || !errors.As(err, &de) || !de.Distinguished {
		r.renderDefault(err)
		return
	}

	switch ctx {
	case ContextInteractive, ContextNotebook:
		fmt.Fprintf(r.out, "%s %s\n", red(DefaultCategory+":", r.color), de.Message)
	default:
		fmt.Fprintf(r.out, "%s %s\n", red(de.category()+":", r.color), de.Message)
	}
}

// renderDefault 输出完整报告；zerr 包装的错误在 %+v 下带有调用栈。
func (r *Reporter) renderDefault(err error) {
	fmt.Fprintf(r.out, "%+v\n", err)
}
