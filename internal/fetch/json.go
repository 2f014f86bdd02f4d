package fetch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hapi-server/hapifetch/internal/diag"
	"github.com/hapi-server/hapifetch/internal/logging"
	"github.com/hapi-server/hapifetch/internal/upstream"
)

// GetJSON 读取 rawURL 的 JSON 文档并解码到 v，不经过本地缓存。
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	if _, err := upstream.ParseURL(rawURL); err != nil {
		return f.reporter.Raise(classify(err, rawURL))
	}

	resp, err := f.transport.Get(ctx, rawURL)
	if err != nil {
		return f.reporter.Raise(classify(err, rawURL))
	}
	defer resp.Body.Close()

	f.logger.WithFields(logging.FetchFields("open", rawURL, "", resp.RequestID)).
		Debugf("Reading JSON from %s", rawURL)

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		e := diag.Expected(fmt.Sprintf("Could not parse JSON from %s", rawURL))
		e.URL = rawURL
		e.Err = err
		return f.reporter.Raise(e)
	}
	return nil
}
