package integrity

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDuplicateDropped(t *testing.T) {
	t.Parallel()

	g := New(Config{DuplicatePolicy: DropDuplicate}, discardLogger())

	ev := Stamped{Stream: types.StreamL2Delta, Seq: 1, IngestTS: 100, Fingerprint: 1}
	admit, halt := g.Check(ev)
	require.Nil(t, halt)
	assert.True(t, admit)

	admit, halt = g.Check(ev)
	require.Nil(t, halt)
	assert.False(t, admit, "second identical event must be dropped")
	assert.Equal(t, uint64(1), g.Counters().Duplicates)
}

func TestGapHaltsInStrictMode(t *testing.T) {
	t.Parallel()

	g := New(Config{GapPolicy: HaltOnGap, Strict: true}, discardLogger())

	_, halt := g.Check(Stamped{Stream: types.StreamL2Delta, Seq: 1, IngestTS: 100, Fingerprint: 1})
	require.Nil(t, halt)

	_, halt = g.Check(Stamped{Stream: types.StreamL2Delta, Seq: 3, IngestTS: 101, Fingerprint: 2})
	require.NotNil(t, halt)
	assert.Equal(t, PathologyGap, halt.Pathology)
	assert.Equal(t, uint64(1), g.Counters().Gaps)
	assert.Equal(t, uint64(1), g.Counters().Halts)
}

func TestGapLoggedNotHaltedWithoutStrict(t *testing.T) {
	t.Parallel()

	g := New(Config{GapPolicy: HaltOnGap, Strict: false}, discardLogger())

	_, _ = g.Check(Stamped{Stream: types.StreamL2Delta, Seq: 1, IngestTS: 100, Fingerprint: 1})
	admit, halt := g.Check(Stamped{Stream: types.StreamL2Delta, Seq: 5, IngestTS: 101, Fingerprint: 2})
	assert.Nil(t, halt)
	assert.True(t, admit)
	assert.Equal(t, uint64(1), g.Counters().Gaps)
}

func TestOutOfOrderDetection(t *testing.T) {
	t.Parallel()

	g := New(Config{
		OutOfOrderPolicy:    RejectOutOfOrder,
		OutOfOrderTolerance: 5,
		Strict:              true,
	}, discardLogger())

	_, halt := g.Check(Stamped{Stream: types.StreamTradePrint, Seq: 1, IngestTS: 1000, Fingerprint: 1})
	require.Nil(t, halt)

	_, halt = g.Check(Stamped{Stream: types.StreamTradePrint, Seq: 2, IngestTS: 900, Fingerprint: 2})
	require.NotNil(t, halt)
	assert.Equal(t, PathologyOutOfOrder, halt.Pathology)
}

func TestOutOfOrderWithinToleranceAdmitted(t *testing.T) {
	t.Parallel()

	g := New(Config{
		OutOfOrderPolicy:    RejectOutOfOrder,
		OutOfOrderTolerance: 100,
		Strict:              true,
	}, discardLogger())

	_, _ = g.Check(Stamped{Stream: types.StreamTradePrint, Seq: 1, IngestTS: 1000, Fingerprint: 1})
	admit, halt := g.Check(Stamped{Stream: types.StreamTradePrint, Seq: 2, IngestTS: 950, Fingerprint: 2})
	assert.Nil(t, halt)
	assert.True(t, admit)
}
