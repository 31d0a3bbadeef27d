package strategy

import "github.com/rostredko/smc-bot-sub000/market"

// Noop never signals.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) GenerateSignals(snap *market.Snapshot) ([]Signal, error) {
	_ = snap
	return nil, nil
}
