package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责本地缓存文件的读写。name 可以是绝对路径，也可以是相对 basePath 的
// URL 风格路径；相对路径会被限制在 basePath 之内：
//
//	<basePath>/<host>/<path>    # 实际正文
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Stat 返回条目的文件信息而不打开正文。若不存在则返回 ErrNotFound。
	Stat(ctx context.Context, name string) (*Entry, error)

	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, name string) (*ReadResult, error)

	// Put 写入新正文，并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。opts.ModTime 非零时同时设置 atime/mtime。
	Put(ctx context.Context, name string, body io.Reader, opts PutOptions) (*Entry, error)

	// Resolve 返回 name 对应的磁盘路径，并保证其父目录存在。
	Resolve(name string) (string, error)

	// BasePath 返回相对路径的根目录。
	BasePath() string
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Entry 描述一个本地缓存文件。
type Entry struct {
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于镜像服务直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

// ErrInvalidPath 表示相对路径越出了 basePath。
var ErrInvalidPath = errors.New("invalid cache path")
