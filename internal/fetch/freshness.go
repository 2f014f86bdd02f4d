package fetch

import (
	"fmt"
	"strings"
	"time"
)

// LastModifiedLayout 是 Last-Modified 头的固定格式，始终按 UTC 解释。
const LastModifiedLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// ParseLastModified 按 LastModifiedLayout 解析头部值。
func ParseLastModified(value string) (time.Time, error) {
	t, err := time.ParseInLocation(LastModifiedLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse Last-Modified %q: %w", value, err)
	}
	return t, nil
}

// IsStale 判断本地文件是否需要重新下载。
//
// 头部缺失视为过期；头部无法解析时同样视为过期并返回解析错误；
// 否则仅当远端严格晚于本地时过期，二者相等时沿用本地副本。
func IsStale(local time.Time, lastModified string) (bool, time.Time, error) {
	if strings.TrimSpace(lastModified) == "" {
		return true, time.Time{}, nil
	}
	remote, err := ParseLastModified(lastModified)
	if err != nil {
		return true, time.Time{}, err
	}
	return remote.After(local), remote, nil
}
