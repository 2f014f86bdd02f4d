package diag

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"
)

func newTestReporter(ctx Context, opts ...Option) (*Reporter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	all := append([]Option{WithDetector(func() Context { return ctx }), WithColor(false)}, opts...)
	return NewReporter(buf, all...), buf
}

func TestHandleDistinguishedBare(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	err := r.Fail("'ftp//bad' is not a valid URL")
	require.True(t, r.Armed())
	require.True(t, IsDistinguished(err))

	code := r.Handle(err)
	require.Equal(t, 1, code)
	require.Equal(t, "Error: 'ftp//bad' is not a valid URL\n", buf.String())
	require.False(t, r.Armed())
}

func TestHandleOrdinaryBareKeepsFullReport(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	_ = r.Fail("armed by an earlier failure")
	err := zerr.Wrap(errors.New("disk full"), "write cache file")

	code := r.Handle(err)
	require.Equal(t, 1, code)
	require.Contains(t, buf.String(), "write cache file")
	require.NotEqual(t, "Error: write cache file\n", buf.String())
	require.False(t, r.Armed())
}

func TestHandleUnarmedDistinguishedStaysOneLine(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	code := r.Handle(Expected("never armed"))
	require.Equal(t, 1, code)
	require.Equal(t, "Error: never armed\n", buf.String())
}

func TestHandleSequentialFailures(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	first := r.Fail("first failure")
	second := r.Fail("second failure")
	require.Equal(t, 1, r.Handle(first))
	require.False(t, r.Armed())
	require.Equal(t, 1, r.Handle(second))

	require.Equal(t, "Error: first failure\nError: second failure\n", buf.String())
}

func TestHandleUnarmedOrdinaryKeepsFullReport(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	require.Equal(t, 1, r.Handle(errors.New("disk full")))
	require.Equal(t, "disk full\n", buf.String())
}

func TestHandleNilDisarms(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	_ = r.Fail("recovered upstream")
	require.Equal(t, 0, r.Handle(nil))
	require.False(t, r.Armed())
	require.Empty(t, buf.String())
}

func TestBareUsesCategory(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	err := r.Raise(&Error{Kind: KindExpected, Category: "HAPIError", Message: "bad time range", Distinguished: true})
	r.Handle(err)
	require.Equal(t, "HAPIError: bad time range\n", buf.String())
}

func TestShellContextsRenderErrorPrefix(t *testing.T) {
	for _, ctx := range []Context{ContextInteractive, ContextNotebook} {
		t.Run(ctx.String(), func(t *testing.T) {
			r, buf := newTestReporter(ctx)
			err := r.Raise(&Error{Kind: KindExpected, Category: "HAPIError", Message: "no data", Distinguished: true})
			r.Handle(err)
			require.Equal(t, "Error: no data\n", buf.String())
			require.False(t, r.Armed())
		})
	}
}

func TestHandleWrappedDistinguished(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	err := zerr.With(r.Fail("HTTP 404"), "url", "http://example.org/hapi")
	r.Handle(err)
	require.Equal(t, "Error: HTTP 404\n", buf.String())
}

func TestDebugShowsFullReport(t *testing.T) {
	r, buf := newTestReporter(ContextBare, WithDebug(true))

	err := r.Raise(Transport("connection refused", "http://localhost:1", errors.New("dial tcp")))
	r.Handle(err)

	out := buf.String()
	require.NotEqual(t, "connection refused\n", out)
	require.True(t, strings.HasPrefix(out, "connection refused\n"))
	require.Contains(t, out, "kind: transport")
	require.Contains(t, out, "url: http://localhost:1")
	require.Contains(t, out, "source: reporter_test.go")
	require.Contains(t, out, "caused by: dial tcp")
	require.Contains(t, out, "TestDebugShowsFullReport")
}

func TestErrorFormatVerbs(t *testing.T) {
	err := Transport("connection refused", "http://localhost:1", errors.New("dial tcp"))

	require.Equal(t, "connection refused", fmt.Sprintf("%v", err))
	require.Equal(t, "connection refused", fmt.Sprintf("%s", err))
	require.Equal(t, `"connection refused"`, fmt.Sprintf("%q", err))
	require.Contains(t, fmt.Sprintf("%+v", err), "caused by: dial tcp")
}

func TestColorKeepsLiteralPrefix(t *testing.T) {
	r, buf := newTestReporter(ContextBare, WithColor(true))

	r.Handle(r.Fail("boom"))
	out := buf.String()
	require.Contains(t, out, "\x1b[31m")
	require.Contains(t, out, "Error:")
	require.True(t, strings.HasSuffix(out, " boom\n"))
}

func TestWarnNamesCallerFile(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	r.Warn("Ignoring invalid keyword option \"foo\".")
	require.Equal(t, "Warning in reporter_test.go: Ignoring invalid keyword option \"foo\".\n", buf.String())
	require.False(t, r.Armed())
}

func TestWarnFrom(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	r.WarnFrom("stale header", "/src/hapi/loader.go")
	require.Equal(t, "Warning in loader.go: stale header\n", buf.String())
}

func TestOrdinaryWarningUsesDefaultFormat(t *testing.T) {
	r, buf := newTestReporter(ContextBare)

	r.Emit(Event{Message: "Normal warning 1", Source: "script.go"})
	r.Warn("HAPI Warning 1")
	r.Emit(Event{Message: "Normal warning 2", Source: "script.go"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{
		"script.go: UserWarning: Normal warning 1",
		"Warning in reporter_test.go: HAPI Warning 1",
		"script.go: UserWarning: Normal warning 2",
	}, lines)
}

func TestWarningFormatIgnoresContext(t *testing.T) {
	for _, ctx := range []Context{ContextBare, ContextInteractive, ContextNotebook} {
		t.Run(ctx.String(), func(t *testing.T) {
			r, buf := newTestReporter(ctx)
			r.WarnFrom("stale header", "loader.go")
			require.Equal(t, "Warning in loader.go: stale header\n", buf.String())
			require.False(t, r.Armed())
		})
	}
}

type spyWriter struct {
	r        *Reporter
	armedSaw bool
	panicMsg string
}

func (w *spyWriter) Write(p []byte) (int, error) {
	w.armedSaw = w.r.Armed()
	if w.panicMsg != "" {
		panic(w.panicMsg)
	}
	return len(p), nil
}

func TestWarnArmedOnlyWhileRendering(t *testing.T) {
	w := &spyWriter{}
	r := NewReporter(w, WithDetector(func() Context { return ContextBare }))
	w.r = r

	r.Warn("watch me")
	require.True(t, w.armedSaw)
	require.False(t, r.Armed())
}

func TestWarnDisarmsWhenRenderingPanics(t *testing.T) {
	w := &spyWriter{panicMsg: "writer exploded"}
	r := NewReporter(w, WithDetector(func() Context { return ContextBare }))
	w.r = r

	require.PanicsWithValue(t, "writer exploded", func() { r.Warn("x") })
	require.False(t, r.Armed())
}

func TestHandleDisarmsWhenRenderingPanics(t *testing.T) {
	w := &spyWriter{panicMsg: "writer exploded"}
	r := NewReporter(w, WithDetector(func() Context { return ContextBare }))
	w.r = r

	err := r.Fail("x")
	require.PanicsWithValue(t, "writer exploded", func() { r.Handle(err) })
	require.False(t, w.armedSaw)
	require.False(t, r.Armed())
}

func TestRecoverDistinguishedPanic(t *testing.T) {
	exitCode := -1
	r, buf := newTestReporter(ContextBare, WithExit(func(code int) { exitCode = code }))

	func() {
		defer r.Recover()
		panic(r.Fail("server returned status 1406"))
	}()

	require.Equal(t, 1, exitCode)
	require.Equal(t, "Error: server returned status 1406\n", buf.String())
	require.False(t, r.Armed())
}

func TestRecoverOrdinaryPanicRepanics(t *testing.T) {
	exitCode := -1
	r, buf := newTestReporter(ContextBare, WithExit(func(code int) { exitCode = code }))
	_ = r.Fail("armed")

	require.PanicsWithValue(t, "index out of range", func() {
		defer r.Recover()
		panic("index out of range")
	})
	require.Equal(t, -1, exitCode)
	require.Empty(t, buf.String())
	require.False(t, r.Armed())
}

func TestPackageLevelFacility(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	r, buf := newTestReporter(ContextBare)
	SetDefault(r)

	Warn("from package")
	err := Fail("package failure")
	require.True(t, r.Armed())
	r.Handle(err)

	require.Equal(t, "Warning in reporter_test.go: from package\nError: package failure\n", buf.String())
	require.Equal(t, "reporter_test.go", err.(*Error).Source)
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindTransport, KindOf(Transport("x", "u", nil)))
	require.Equal(t, KindExpected, KindOf(zerr.Wrap(Expected("x"), "ctx")))
	require.Equal(t, KindOrdinary, KindOf(errors.New("plain")))
}
