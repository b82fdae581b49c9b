package examples

import (
	"fmt"
	"sort"
	"strings"

	"github.com/0xtitan6/backtest-v2/internal/strategy"
)

// registryEntry pairs a strategy name with its one-line description.
// Available() lists the names, and New's unknown-strategy error includes
// that list.
type registryEntry struct {
	name string
	desc string
}

var registry = []registryEntry{
	{"noop", "No-op strategy that never trades (smoke test)"},
	{"random_taker", "Random taker strategy for gate suite tests"},
	{"avellaneda", "Two-sided market making around mid-price"},
	{"momentum", "Momentum-following strategy based on short-term price trends"},
}

// Available lists the registered example strategy names.
func Available() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.name
	}
	sort.Strings(names)
	return names
}

// Params bundles every example strategy's parameters; exactly one should be
// populated, selected by the name passed to New.
type Params struct {
	Avellaneda   AvellanedaParams
	RandomTaker  RandomTakerParams
	Momentum     MomentumParams
}

// New constructs a registered example strategy by name (case-insensitive).
func New(name string, p Params) (strategy.Strategy, error) {
	switch strings.ToLower(name) {
	case "noop", "no-op", "no_op":
		return NoOp{}, nil
	case "random_taker", "random-taker":
		return NewRandomTaker(p.RandomTaker), nil
	case "avellaneda", "market_maker", "market-maker", "mm":
		return NewAvellaneda(p.Avellaneda), nil
	case "momentum", "momo":
		return NewMomentum(p.Momentum), nil
	default:
		return nil, fmt.Errorf("strategy: unknown strategy %q, available: %s", name, strings.Join(Available(), ", "))
	}
}
