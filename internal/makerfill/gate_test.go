package makerfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmitsFillWithBothProofsValid(t *testing.T) {
	t.Parallel()
	g := New()

	v := g.Admit(ProposedFill{
		OrderID:    "o1",
		PriceTicks: 50,
		Quantity:   10,
		FillTS:     1000,
		Queue:      QueueProof{OrderID: "o1", RemainingAhead: 0},
		CancelRace: CancelRaceProof{OrderID: "o1", LiveAtFillTS: true},
	})
	assert.True(t, v.Admitted)
	assert.Equal(t, uint64(1), g.Counters().Admitted)
}

func TestRejectsFillWithUnconsumedQueue(t *testing.T) {
	t.Parallel()
	g := New()

	v := g.Admit(ProposedFill{
		OrderID:    "o1",
		FillTS:     1000,
		Queue:      QueueProof{OrderID: "o1", RemainingAhead: 5},
		CancelRace: CancelRaceProof{OrderID: "o1", LiveAtFillTS: true},
	})
	assert.False(t, v.Admitted)
	assert.Equal(t, uint64(1), g.Counters().Rejected)
}

func TestRejectsFillThatLostCancelRace(t *testing.T) {
	t.Parallel()
	g := New()

	v := g.Admit(ProposedFill{
		OrderID: "o1",
		FillTS:  1000,
		Queue:   QueueProof{OrderID: "o1", RemainingAhead: 0},
		CancelRace: CancelRaceProof{
			OrderID: "o1", LiveAtFillTS: true, HasCancel: true,
			CancelTS: 500, FillTS: 1000,
		},
	})
	assert.False(t, v.Admitted, "cancel visible before fill must block the fill")
}

func TestAdmitsFillWhenCancelComesAfterFill(t *testing.T) {
	t.Parallel()
	g := New()

	v := g.Admit(ProposedFill{
		OrderID: "o1",
		FillTS:  1000,
		Queue:   QueueProof{OrderID: "o1", RemainingAhead: 0},
		CancelRace: CancelRaceProof{
			OrderID: "o1", LiveAtFillTS: true, HasCancel: true,
			CancelTS: 2000, FillTS: 1000,
		},
	})
	assert.True(t, v.Admitted)
}

func TestRejectsMismatchedOrderIDs(t *testing.T) {
	t.Parallel()
	g := New()

	v := g.Admit(ProposedFill{
		OrderID:    "o1",
		Queue:      QueueProof{OrderID: "o2", RemainingAhead: 0},
		CancelRace: CancelRaceProof{OrderID: "o1", LiveAtFillTS: true},
	})
	assert.False(t, v.Admitted)
}

func TestNotLiveAtFillRejected(t *testing.T) {
	t.Parallel()
	g := New()

	v := g.Admit(ProposedFill{
		OrderID:    "o1",
		Queue:      QueueProof{OrderID: "o1", RemainingAhead: 0},
		CancelRace: CancelRaceProof{OrderID: "o1", LiveAtFillTS: false},
	})
	assert.False(t, v.Admitted)
}
