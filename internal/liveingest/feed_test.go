package liveingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/internal/dataset"
	"github.com/0xtitan6/backtest-v2/internal/integrity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGuardConfig() integrity.Config {
	return integrity.Config{
		DuplicatePolicy:  integrity.DropDuplicate,
		GapPolicy:        integrity.HaltOnGap,
		OutOfOrderPolicy: integrity.RejectOutOfOrder,
		Strict:           false,
	}
}

// newEchoServer serves the given raw JSON messages over a single upgraded
// WebSocket connection, then closes.
func newEchoServer(t *testing.T, messages [][]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, m); err != nil {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}))
}

func TestFeedWritesAdmittedBookAndTradeRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, err := dataset.Create(dir)
	require.NoError(t, err)

	book, _ := json.Marshal(map[string]any{
		"event_type": "book", "asset_id": "tok1", "seq": uint64(1),
		"bid_tick": 48, "ask_tick": 52, "bid_size": 10, "ask_size": 10,
	})
	trade, _ := json.Marshal(map[string]any{
		"event_type": "trade", "asset_id": "tok1", "seq": uint64(1),
		"price_tick": 50, "quantity": 5, "side": "buy",
	})

	srv := newEchoServer(t, [][]byte{book, trade})
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := New(wsURL, "m1", w, testGuardConfig(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = f.Run(ctx)

	require.NoError(t, w.Close(dataset.Metadata{DatasetID: "ds1", Market: "m1", Readiness: dataset.Both}))

	r, err := dataset.Open(dir)
	require.NoError(t, err)
	defer r.Close()

	var kinds []dataset.RecordKind
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, rec.Kind)
	}
	require.Len(t, kinds, 2)
	require.Equal(t, dataset.RecordL2Snapshot, kinds[0])
	require.Equal(t, dataset.RecordTradePrint, kinds[1])
}

func TestStampProducesIncreasingLocalSequence(t *testing.T) {
	t.Parallel()
	f := &Feed{logger: testLogger()}
	_, seq1 := f.stamp(0, 1, map[string]int{"a": 1})
	_, seq2 := f.stamp(0, 2, map[string]int{"a": 2})
	require.Equal(t, uint64(1), seq1)
	require.Equal(t, uint64(2), seq2)
}
