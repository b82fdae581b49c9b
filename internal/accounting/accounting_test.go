package accounting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

func TestPostFillUpdatesBalancedLedger(t *testing.T) {
	t.Parallel()
	e := New(Config{AllowNegativeCash: true})

	err := e.PostFill(1000, "fill-1", "m1", types.Up,
		ledger.FromUnits(-5, 0), ledger.FromUnits(5, 0), ledger.FromUnits(0, 1_000_000))
	require.NoError(t, err)
	assert.False(t, e.Halted())

	cash := e.Ledger().Balance(ledger.AccountKey{Kind: ledger.AccountCash})
	assert.Equal(t, ledger.FromUnits(-5, -1_000_000), cash)
}

func TestPostFillHaltsOnNegativeCashWhenMarginDisallowed(t *testing.T) {
	t.Parallel()
	e := New(Config{AllowNegativeCash: false})

	err := e.PostFill(1000, "fill-1", "m1", types.Up,
		ledger.FromUnits(-100, 0), ledger.FromUnits(100, 0), ledger.FromUnits(0, 0))
	require.Error(t, err)
	assert.True(t, e.Halted())
	require.NotNil(t, e.FirstViolation())
	assert.Equal(t, ViolationNegativeCash, e.FirstViolation().Type)
}

func TestPostFillAllowsNegativeCashWhenMarginAllowed(t *testing.T) {
	t.Parallel()
	e := New(Config{AllowNegativeCash: true})

	err := e.PostFill(1000, "fill-1", "m1", types.Up,
		ledger.FromUnits(-100, 0), ledger.FromUnits(100, 0), ledger.FromUnits(0, 0))
	require.NoError(t, err)
	assert.False(t, e.Halted())
}

func TestEnforcerRefusesToPostAfterHalt(t *testing.T) {
	t.Parallel()
	e := New(Config{})
	err := e.PostFill(1000, "fill-1", "m1", types.Up,
		ledger.FromUnits(-100, 0), ledger.FromUnits(100, 0), ledger.FromUnits(0, 0))
	require.Error(t, err)
	require.True(t, e.Halted())

	err2 := e.PostFill(2000, "fill-2", "m1", types.Up,
		ledger.FromUnits(1, 0), ledger.FromUnits(-1, 0), ledger.FromUnits(0, 0))
	require.Error(t, err2)

	var v Violation
	assert.ErrorAs(t, err2, &v)
	assert.Equal(t, ViolationPostAfterHalt, v.Type)

	// The first violation recorded must remain the negative-cash one, not
	// be overwritten by the post-after-halt attempt.
	assert.Equal(t, ViolationNegativeCash, e.FirstViolation().Type)
}

func TestPostSettlementBalances(t *testing.T) {
	t.Parallel()
	e := New(Config{})
	err := e.PostSettlement(5000, "settle-1", "m1", types.Up,
		ledger.FromUnits(10, 0), ledger.FromUnits(-10, 0))
	require.NoError(t, err)
	assert.False(t, e.Halted())

	cash := e.Ledger().Balance(ledger.AccountKey{Kind: ledger.AccountCash})
	assert.Equal(t, ledger.FromUnits(10, 0), cash)
}
