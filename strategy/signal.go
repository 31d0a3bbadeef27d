package strategy

// Direction of a trade signal. Exit requests that the engine close the
// currently open position rather than open a new one.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Exit  Direction = "EXIT"
)

// Sign returns +1 for Long, -1 for Short, 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case Long:
		return 1
	case Short:
		return -1
	}
	return 0
}

// Signal is a trade intent emitted by a strategy. It is immutable once
// emitted: the engine validates and sizes it but never writes back into it.
// Zero values for EntryPrice/StopLoss/TakeProfit mean "not set"; the engine
// fills in its own defaults.
type Signal struct {
	Direction  Direction
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	Reason     string
	Meta       map[string]string
}
