package diag

import (
	"os"
	"path/filepath"
	"strings"
)

// Context 表示当前进程的执行环境，仅影响展示格式，不影响程序逻辑。
type Context int

const (
	// ContextBare 普通进程（命令行直接启动）。
	ContextBare Context = iota
	// ContextInteractive 增强交互式 shell（如 ipython、qtconsole）。
	ContextInteractive
	// ContextNotebook notebook 前端启动的内核。
	ContextNotebook
)

func (c Context) String() string {
	switch c {
	case ContextInteractive:
		return "interactive"
	case ContextNotebook:
		return "notebook"
	default:
		return "bare"
	}
}

// notebookLaunchers 列出会被识别为 notebook 的启动程序名。
var notebookLaunchers = []string{"jupyter-notebook", "jupyter-lab"}

const (
	interactiveLauncher = "ipython"
	interactiveEnvVar   = "JPY_PARENT_PID"
)

// Classify 根据启动程序路径与环境变量判定执行环境，纯函数便于测试。
func Classify(program string, lookupEnv func(string) (string, bool)) Context {
	name := strings.ToLower(filepath.Base(strings.TrimSpace(program)))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}

	for _, launcher := range notebookLaunchers {
		if name != "" && strings.Contains(name, launcher) {
			return ContextNotebook
		}
	}

	if lookupEnv != nil {
		if _, ok := lookupEnv(interactiveEnvVar); ok {
			return ContextInteractive
		}
	}
	if strings.Contains(name, interactiveLauncher) {
		return ContextInteractive
	}
	return ContextBare
}

// Detect 读取当前进程环境并分类；每次调用都重新计算，不做缓存。
func Detect() Context {
	return Classify(os.Getenv("_"), os.LookupEnv)
}
