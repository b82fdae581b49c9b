package examples

import "github.com/0xtitan6/backtest-v2/internal/strategy"

// NoOp never places an order. It exists for smoke tests and as the control
// arm of the gate suite's zero-edge gate: a strategy that trades nothing
// must show exactly zero PnL and zero fills, or the harness itself is
// miscounting something.
type NoOp struct{}

func (NoOp) OnBookSnapshot(strategy.Context, strategy.BookSnapshot)          {}
func (NoOp) OnTradePrint(strategy.Context, strategy.TradePrint)              {}
func (NoOp) OnTimer(strategy.Context, strategy.TimerTick)                   {}
func (NoOp) OnOrderAck(strategy.Context, strategy.OrderAck)                 {}
func (NoOp) OnOrderReject(strategy.Context, strategy.OrderReject)           {}
func (NoOp) OnCancelAck(strategy.Context, strategy.CancelAck)               {}
func (NoOp) OnFill(strategy.Context, strategy.FillNotification)            {}
func (NoOp) OnSettlementVisible(strategy.Context, strategy.SettlementVisible) {}
