package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.trai.ch/zerr"

	"github.com/hapi-server/hapifetch/internal/cache"
	"github.com/hapi-server/hapifetch/internal/diag"
	"github.com/hapi-server/hapifetch/internal/logging"
	"github.com/hapi-server/hapifetch/internal/upstream"
)

// Transport 是网络能力：HEAD 取响应头，GET 取正文与响应头。
type Transport interface {
	Head(ctx context.Context, url string) (http.Header, error)
	Get(ctx context.Context, url string) (*upstream.Response, error)
}

// CacheEntry 描述一次调用涉及的本地/远端时间戳，仅在调用期间存在。
type CacheEntry struct {
	LocalPath     string
	RemoteURL     string
	LocalModTime  time.Time
	RemoteModTime time.Time
	HasRemoteTime bool
}

// Result 报告 EnsureFresh 走了哪条路径。
type Result struct {
	Downloaded bool
	Entry      CacheEntry
}

// Fetcher 根据 Last-Modified 判断是否需要刷新本地文件。
type Fetcher struct {
	transport Transport
	store     cache.Store
	logger    *logrus.Logger
	reporter  *diag.Reporter
}

// New 构建 Fetcher；logger 为空时丢弃日志，reporter 为空时使用进程级 Reporter。
func New(transport Transport, store cache.Store, logger *logrus.Logger, reporter *diag.Reporter) *Fetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	if reporter == nil {
		reporter = diag.Default()
	}
	return &Fetcher{
		transport: transport,
		store:     store,
		logger:    logger,
		reporter:  reporter,
	}
}

// EnsureFresh 保证 localPath 不比 remoteURL 旧：本地缺失、远端缺少 Last-Modified
// 或远端严格更新时下载，否则沿用本地副本。
func (f *Fetcher) EnsureFresh(ctx context.Context, localPath, remoteURL string) (Result, error) {
	result := Result{Entry: CacheEntry{LocalPath: localPath, RemoteURL: remoteURL}}

	filePath, err := f.store.Resolve(localPath)
	if err != nil {
		return result, zerr.With(zerr.Wrap(err, "prepare local path"), "path", localPath)
	}
	result.Entry.LocalPath = filePath

	if _, err := upstream.ParseURL(remoteURL); err != nil {
		return result, f.reporter.Raise(classify(err, remoteURL))
	}

	f.logger.WithFields(logging.FetchFields("head", remoteURL, filePath, "")).
		Infof("Making head request on %s", remoteURL)
	header, err := f.transport.Head(ctx, remoteURL)
	if err != nil {
		return result, f.reporter.Raise(classify(err, remoteURL))
	}

	stale := true
	local, err := f.store.Stat(ctx, filePath)
	switch {
	case errors.Is(err, cache.ErrNotFound):
	case err != nil:
		return result, zerr.With(zerr.Wrap(err, "stat local file"), "path", filePath)
	default:
		result.Entry.LocalModTime = local.ModTime
		lastModified := header.Get("Last-Modified")
		var remote time.Time
		stale, remote, err = IsStale(local.ModTime, lastModified)
		if err != nil {
			f.reporter.Warn(fmt.Sprintf("Could not parse Last-Modified %q from %s; downloading.", lastModified, remoteURL))
		} else if !remote.IsZero() {
			result.Entry.RemoteModTime = remote
			result.Entry.HasRemoteTime = true
		}
	}

	if !stale {
		f.logger.WithFields(logging.FetchFields("cache_reuse", remoteURL, filePath, "")).
			Infof("Local version of %s is up-to-date; using it.", filePath)
		return result, nil
	}

	entry, err := f.download(ctx, filePath, remoteURL)
	if err != nil {
		return result, err
	}
	result.Downloaded = true
	result.Entry.LocalModTime = entry.LocalModTime
	result.Entry.RemoteModTime = entry.RemoteModTime
	result.Entry.HasRemoteTime = entry.HasRemoteTime
	return result, nil
}

// EnsureCached 以 CachePath 推导的缓存路径调用 EnsureFresh。
func (f *Fetcher) EnsureCached(ctx context.Context, remoteURL string) (Result, error) {
	localPath, err := CachePath(f.store.BasePath(), remoteURL)
	if err != nil {
		return Result{Entry: CacheEntry{RemoteURL: remoteURL}}, f.reporter.Raise(classify(err, remoteURL))
	}
	return f.EnsureFresh(ctx, localPath, remoteURL)
}

// download 通过 GET 获取正文，经临时文件原子落盘，并以响应的 Last-Modified 标记 atime/mtime。
func (f *Fetcher) download(ctx context.Context, filePath, remoteURL string) (CacheEntry, error) {
	entry := CacheEntry{LocalPath: filePath, RemoteURL: remoteURL}

	f.logger.WithFields(logging.FetchFields("download", remoteURL, filePath, "")).
		Infof("Downloading %s to %s", remoteURL, filePath)

	resp, err := f.transport.Get(ctx, remoteURL)
	if err != nil {
		return entry, f.reporter.Raise(classify(err, remoteURL))
	}
	defer resp.Body.Close()

	var opts cache.PutOptions
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := ParseLastModified(lm); err == nil {
			opts.ModTime = t
			entry.RemoteModTime = t
			entry.HasRemoteTime = true
		}
	}

	stored, err := f.store.Put(ctx, filePath, resp.Body, opts)
	if err != nil {
		err = zerr.Wrap(err, "write cache file")
		return entry, zerr.With(zerr.With(err, "path", filePath), "request_id", resp.RequestID)
	}
	entry.LocalModTime = stored.ModTime
	return entry, nil
}

var unsafeQueryChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CachePath 把 URL 映射为 <cacheDir>/<host>/<path>，查询串经清理后拼到文件名末尾。
func CachePath(cacheDir, rawURL string) (string, error) {
	u, err := upstream.ParseURL(rawURL)
	if err != nil {
		return "", err
	}
	name := strings.Trim(path.Clean("/"+u.Path), "/")
	if name == "" {
		name = "index"
	}
	if u.RawQuery != "" {
		name += "_" + strings.Trim(unsafeQueryChars.ReplaceAllString(u.RawQuery, "_"), "_")
	}
	return filepath.Join(cacheDir, u.Host, filepath.FromSlash(name)), nil
}
