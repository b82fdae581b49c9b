package oracle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchRangeParsesTicks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"t":1000,"b":"100.50","a":"100.60","p":"100.55"}]`))
	}))
	defer srv.Close()

	c := NewBackfillClient(srv.URL, discardLogger())
	ticks, err := c.FetchRange(context.Background(), "BTCUSDT", 0, 1000)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, int64(1000), ticks[0].TimestampMs)
	assert.InDelta(t, 100.50, ticks[0].Bid, 1e-9)
}

func TestFetchRangeReturnsErrorOnServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewBackfillClient(srv.URL, discardLogger())
	_, err := c.FetchRange(context.Background(), "BTCUSDT", 0, 1000)
	assert.Error(t, err)
}
