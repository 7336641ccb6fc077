package domain

import "errors"

// Direction is the side of a simulated position.
type Direction string

// Direction constants.
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Signal validation errors.
var (
	ErrSignalInvalidDirection = errors.New("signal direction must be LONG or SHORT")
	ErrSignalMissingSymbol    = errors.New("signal symbol is required")
)

// Signal represents one directional entry candidate produced by an
// upstream scoring process. Read-only to this system.
type Signal struct {
	ID        int64     // unique signal identifier
	Symbol    string    // instrument, e.g. "BTCUSDT"
	Timestamp int64     // signal detection time, Unix milliseconds
	Direction Direction // LONG or SHORT
}

// Validate checks the signal carries a usable symbol and direction.
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return ErrSignalMissingSymbol
	}
	if s.Direction != DirectionLong && s.Direction != DirectionShort {
		return ErrSignalInvalidDirection
	}
	return nil
}
