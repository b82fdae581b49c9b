package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

func TestPostBalancedEntrySucceeds(t *testing.T) {
	t.Parallel()
	l := New()
	cash := AccountKey{Kind: AccountCash}
	pos := AccountKey{Kind: AccountPosition, Market: "m1", Outcome: types.Up}

	_, err := l.Post(1000, "fill-1", []Posting{
		{Account: cash, Amount: -FromUnits(5, 0)},
		{Account: pos, Amount: FromUnits(5, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, FromUnits(-5, 0), l.Balance(cash))
	assert.Equal(t, FromUnits(5, 0), l.Balance(pos))
}

func TestPostUnbalancedEntryRejected(t *testing.T) {
	t.Parallel()
	l := New()
	_, err := l.Post(1000, "bad-1", []Posting{
		{Account: AccountKey{Kind: AccountCash}, Amount: -FromUnits(5, 0)},
		{Account: AccountKey{Kind: AccountPosition}, Amount: FromUnits(4, 0)},
	})
	assert.Error(t, err)
	assert.Empty(t, l.Entries(), "an unbalanced entry must not be recorded")
}

func TestDuplicateEventRefRejected(t *testing.T) {
	t.Parallel()
	l := New()
	postings := []Posting{
		{Account: AccountKey{Kind: AccountCash}, Amount: -FromUnits(1, 0)},
		{Account: AccountKey{Kind: AccountPosition}, Amount: FromUnits(1, 0)},
	}
	_, err := l.Post(1000, "dup", postings)
	require.NoError(t, err)

	_, err = l.Post(2000, "dup", postings)
	assert.Error(t, err)
	assert.Len(t, l.Entries(), 1)
}

func TestEmptyPostingsRejected(t *testing.T) {
	t.Parallel()
	l := New()
	_, err := l.Post(1000, "empty", nil)
	assert.Error(t, err)
}

func TestTotalDebitsEqualsTotalCreditsAfterManyPostings(t *testing.T) {
	t.Parallel()
	l := New()
	cash := AccountKey{Kind: AccountCash}
	fees := AccountKey{Kind: AccountFeesPaid}

	for i := 0; i < 5; i++ {
		_, err := l.Post(clock.Nanos(1000+i), fmt.Sprintf("e%d", i), []Posting{
			{Account: cash, Amount: -FromUnits(0, 1_000_000)},
			{Account: fees, Amount: FromUnits(0, 1_000_000)},
		})
		require.NoError(t, err)
	}
	assert.Equal(t, l.TotalDebits(), l.TotalCredits())
}

func TestAmountStringFormatsFixedPoint(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.50000000", FromUnits(1, 50_000_000).String())
	assert.Equal(t, "-1.50000000", FromUnits(-1, -50_000_000).String())
}
