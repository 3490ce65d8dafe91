// Package parser transforms a vendor's raw instrument-master dump (CSV or
// JSON, depending on vendor) into the uniform ParsedInstruments shape the
// instrument store knows how to insert.
package parser

import (
	"errors"

	"github.com/bjoelf/ttconnect-go/model"
)

// errSkipRow signals that a row was recognized but must be silently
// dropped rather than inserted or treated as a parse failure — e.g. an
// option row with strike 0, which is not a real tradeable option.
var errSkipRow = errors.New("parser: row must be skipped")

// IndexRow is a parsed index/underlying reference row. Indices have no
// broker token of their own that the store persists as tradeable, but they
// still need a broker_tokens row so Resolve can return a subscribable
// token for them.
type IndexRow struct {
	Exchange     model.Exchange
	Symbol       string
	Name         string
	BrokerSymbol string
	Token        string
}

// EquityRow is a parsed cash-equity row.
type EquityRow struct {
	Exchange     model.Exchange
	Symbol       string
	Name         string
	ISIN         string
	LotSize      int
	TickSize     float64
	BrokerSymbol string
	Token        string
}

// FutureRow is a parsed derivative row on the futures segment.
type FutureRow struct {
	DerivativeExchange model.Exchange // NFO/BFO — the segment the row lives on
	UnderlyingExchange model.Exchange // NSE/BSE — the venue of the underlying
	Symbol             string
	Name               string
	Expiry             model.Date
	LotSize            int
	TickSize           float64
	BrokerSymbol       string
	Token              string
}

// OptionRow is a parsed derivative row on the options segment.
type OptionRow struct {
	DerivativeExchange model.Exchange
	UnderlyingExchange model.Exchange
	Symbol             string
	Name               string
	Expiry             model.Date
	Strike             float64
	OptionType         model.OptionType
	LotSize            int
	TickSize           float64
	BrokerSymbol       string
	Token              string
}

// ParsedInstruments is the uniform output of every vendor parser, ready
// for the store's insert-ordering pipeline (indices, then equities, then
// futures, then options).
type ParsedInstruments struct {
	Indices  []IndexRow
	Equities []EquityRow
	Futures  []FutureRow
	Options  []OptionRow
}

// Parser converts a vendor's raw instrument dump into ParsedInstruments.
type Parser interface {
	Parse(raw []byte) (ParsedInstruments, error)
}
