package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickSizeDecimals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tick TickSize
		want int
	}{
		{Tick01, 1},
		{Tick001, 2},
		{Tick0001, 3},
		{Tick00001, 4},
		{TickSize("unknown"), 2}, // default
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.tick.Decimals())
	}
}

func TestTickSizeGrid(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(10), Tick01.Grid())
	assert.Equal(t, int64(100), Tick001.Grid())
	assert.Equal(t, int64(1000), Tick0001.Grid())
	assert.Equal(t, int64(10000), Tick00001.Grid())
}

func TestTickSizeOnGrid(t *testing.T) {
	t.Parallel()

	assert.True(t, Tick001.OnGrid(1))
	assert.True(t, Tick001.OnGrid(99))
	assert.False(t, Tick001.OnGrid(0))
	assert.False(t, Tick001.OnGrid(100))
	assert.False(t, Tick001.OnGrid(-1))
}

func TestSideOpposite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}
