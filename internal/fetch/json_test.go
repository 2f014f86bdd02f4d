package fetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hapi-server/hapifetch/internal/diag"
)

func TestGetJSONDecodes(t *testing.T) {
	h := newHarness(t, &fakeTransport{body: `{"HAPI":"3.1","status":{"code":1200,"message":"OK"}}`})

	var doc struct {
		HAPI   string `json:"HAPI"`
		Status struct {
			Code int `json:"code"`
		} `json:"status"`
	}
	require.NoError(t, h.fetcher.GetJSON(context.Background(), "http://hapi.example.org/hapi/capabilities", &doc))
	require.Equal(t, "3.1", doc.HAPI)
	require.Equal(t, 1200, doc.Status.Code)
	require.False(t, h.reporter.Armed())
}

func TestGetJSONParseFailure(t *testing.T) {
	const u = "http://hapi.example.org/hapi/catalog"
	h := newHarness(t, &fakeTransport{body: "<html>not json</html>"})

	var v map[string]any
	err := h.fetcher.GetJSON(context.Background(), u, &v)
	require.Error(t, err)
	require.Equal(t, "Could not parse JSON from "+u, err.Error())
	require.Equal(t, diag.KindExpected, diag.KindOf(err))

	require.Equal(t, 1, h.reporter.Handle(err))
	require.Equal(t, "Error: Could not parse JSON from "+u+"\n", h.stderr.String())
}

func TestGetJSONInvalidURL(t *testing.T) {
	h := newHarness(t, &fakeTransport{})

	var v map[string]any
	err := h.fetcher.GetJSON(context.Background(), "hapi/catalog", &v)
	require.Error(t, err)
	require.Equal(t, "'hapi/catalog' is not a valid URL", err.Error())
	require.Zero(t, h.transport.gets)
}
