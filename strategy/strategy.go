package strategy

import (
	"fmt"
	"strings"

	"github.com/rostredko/smc-bot-sub000/market"
)

// Strategy generates trade signals from a market snapshot. It is called once
// per bar with every configured timeframe truncated to "now". Routine
// "no signal" bars must return an empty slice, not an error; the engine
// treats errors as zero signals and keeps running.
type Strategy interface {
	Name() string
	GenerateSignals(snap *market.Snapshot) ([]Signal, error)
}

var registry = make(map[string]Strategy)

// Register makes a strategy available to ByName. Later registrations with
// the same name win.
func Register(s Strategy) {
	registry[strings.ToLower(s.Name())] = s
}

// Get returns a registered strategy, nil if unknown.
func Get(name string) Strategy {
	return registry[strings.ToLower(strings.TrimSpace(name))]
}

// ByName builds one of the built-in strategies.
func ByName(name string, fast, slow int) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil

	case "ema-cross", "emacross":
		return NewEMACross(fast, slow), nil

	default:
		if s := Get(name); s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("unknown strategy %q (supported: noop, ema-cross)", name)
	}
}
