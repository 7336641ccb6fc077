package domain

// PositionWindow is the notional holding window of an accepted signal.
// Tracked per instrument by the overlap tracker; never shared across
// instruments.
type PositionWindow struct {
	Symbol    string
	EntryTime int64 // Unix ms
	ExitTime  int64 // EntryTime + fixed holding horizon
}

// Overlaps reports whether two windows on the same instrument intersect.
// Windows are half-open: [EntryTime, ExitTime).
func (w PositionWindow) Overlaps(other PositionWindow) bool {
	if w.Symbol != other.Symbol {
		return false
	}
	return w.EntryTime < other.ExitTime && other.EntryTime < w.ExitTime
}
