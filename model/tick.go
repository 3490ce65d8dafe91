package model

import "time"

// Tick is the canonical normalized market-data update, assembled from
// whatever fields a given subscription mode supplies. Volume, OI, Bid and
// Ask are pointers because a low-mode subscription (LTP-only) genuinely
// does not carry them; Timestamp is a pointer because a frame may carry a
// zero exchange timestamp. nil means "not present in this frame", not zero.
type Tick struct {
	Instrument Instrument
	LTP        float64
	Volume     *int64
	OI         *int64
	Bid        *float64
	Ask        *float64
	Timestamp  *time.Time
}
