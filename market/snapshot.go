package market

import "time"

// Snapshot is the market view handed to a strategy on each bar: every
// configured timeframe's series truncated to the current bar time, so a
// strategy can never see ahead of the simulation clock.
type Snapshot struct {
	Symbol  string
	Time    time.Time
	Primary Timeframe
	Frames  map[Timeframe]Series
}

// Frame returns the truncated series for tf (zero Series if absent).
func (s *Snapshot) Frame(tf Timeframe) Series {
	return s.Frames[tf]
}

// PrimaryFrame returns the truncated series for the primary timeframe.
func (s *Snapshot) PrimaryFrame() Series {
	return s.Frames[s.Primary]
}
