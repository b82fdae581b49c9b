package invariants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/oms"
)

func TestCheckMonotonicAcceptsNonDecreasing(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	require.NoError(t, e.CheckMonotonic(1000, 1000))
	require.NoError(t, e.CheckMonotonic(1000, 2000))
	assert.False(t, e.Halted())
}

func TestCheckMonotonicHaltsOnHardModeViolation(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	err := e.CheckMonotonic(2000, 1000)
	require.Error(t, err)
	assert.True(t, e.Halted())

	err2 := e.CheckNotCrossed(500, 10, 20, true, true)
	require.Error(t, err2)
	assert.Same(t, e.FirstViolation(), err2, "halted enforcer must return the preserved first violation")
}

func TestCheckMonotonicSoftModeDoesNotHalt(t *testing.T) {
	t.Parallel()
	e := New(Soft)
	err := e.CheckMonotonic(2000, 1000)
	require.Error(t, err)
	assert.False(t, e.Halted())
	require.NoError(t, e.CheckMonotonic(1000, 2000))
}

func TestCheckNotCrossedRejectsCrossedBook(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	require.NoError(t, e.CheckNotCrossed(1000, 40, 60, true, true))
	err := e.CheckNotCrossed(1000, 60, 40, true, true)
	assert.Error(t, err)
}

func TestCheckPriceOnGridRejectsOffGrid(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	assert.Error(t, e.CheckPriceOnGrid(1000, 0, 100))
	assert.Error(t, e.CheckPriceOnGrid(1000, 100, 100))
}

func TestCheckTransitionWrapsOMSError(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	o := oms.NewOrder("o1", 100, 1000)
	err := o.Apply(oms.Filled, 2000)
	require.Error(t, err)

	invErr := e.CheckTransition(2000, o.ID, err)
	assert.Error(t, invErr)
	assert.True(t, e.Halted())
}

func TestCheckNoOverfillRejectsExcess(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	require.NoError(t, e.CheckNoOverfill(1000, 5, 10))
	assert.Error(t, e.CheckNoOverfill(1000, 15, 10))
}

func TestCheckEntryBalancedRejectsNonzeroSum(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	entry := ledger.LedgerEntry{
		TS:       1000,
		EventRef: "e1",
		Postings: []ledger.Posting{
			{Amount: 100},
			{Amount: -50},
		},
	}
	assert.Error(t, e.CheckEntryBalanced(entry))
}

func TestCheckCashNonNegativeRejectsNegativeBalance(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	require.NoError(t, e.CheckCashNonNegative(1000, "cash", 100))
	assert.Error(t, e.CheckCashNonNegative(1000, "cash", -1))
}

func TestRecordBoundsTraceAtCapacity(t *testing.T) {
	t.Parallel()
	e := New(Soft)
	for i := 0; i < traceCapacity+10; i++ {
		e.Record(1000, "event")
	}
	assert.Len(t, e.trace, traceCapacity)
}

func TestViolationCarriesTraceSnapshot(t *testing.T) {
	t.Parallel()
	e := New(Hard)
	e.Record(100, "book opened")
	e.Record(200, "order placed")
	err := e.CheckMonotonic(500, 100)
	require.Error(t, err)

	var v *Violation
	require.ErrorAs(t, err, &v)
	require.Len(t, v.Trace, 2)
	assert.Equal(t, "order placed", v.Trace[1].Note)
}
