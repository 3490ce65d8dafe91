// Package model defines the canonical, vendor-agnostic data types shared by
// every other package: instruments, account records, orders, and ticks.
package model

import "fmt"

// Exchange is a trading venue code.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO"
	BFO Exchange = "BFO"
	CDS Exchange = "CDS"
	MCX Exchange = "MCX"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	CE OptionType = "CE"
	PE OptionType = "PE"
)

// Kind tags which arm of Instrument is populated.
type Kind int

const (
	KindIndex Kind = iota
	KindEquity
	KindFuture
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "INDEX"
	case KindEquity:
		return "EQUITY"
	case KindFuture:
		return "FUTURE"
	case KindOption:
		return "OPTION"
	default:
		return "UNKNOWN"
	}
}

// Instrument is the canonical, comparable identity of a tradeable (or
// reference, for Index) instrument. For Future and Option, Exchange names
// the underlying's cash venue (NSE/BSE), never the derivative venue
// (NFO/BFO) — the derivative venue is stored on the derivative's own
// instruments row and returned by the resolver as ResolvedInstrument.Exchange.
//
// All fields are comparable so Instrument can be used directly as a map
// key (used by the resolver cache and the streaming subscription ledger).
type Instrument struct {
	Kind       Kind
	Exchange   Exchange
	Symbol     string
	Expiry     Date // zero value for Index/Equity
	Strike     float64
	OptionType OptionType
}

// Date is a calendar date with no time component, comparable and
// formattable independent of location.
type Date struct {
	Year, Month, Day int
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// NewIndex constructs an Index instrument.
func NewIndex(exchange Exchange, symbol string) Instrument {
	return Instrument{Kind: KindIndex, Exchange: exchange, Symbol: symbol}
}

// NewEquity constructs an Equity instrument.
func NewEquity(exchange Exchange, symbol string) Instrument {
	return Instrument{Kind: KindEquity, Exchange: exchange, Symbol: symbol}
}

// NewFuture constructs a Future instrument. exchange is the underlying's
// cash venue, not NFO/BFO.
func NewFuture(exchange Exchange, symbol string, expiry Date) Instrument {
	return Instrument{Kind: KindFuture, Exchange: exchange, Symbol: symbol, Expiry: expiry}
}

// NewOption constructs an Option instrument. exchange is the underlying's
// cash venue, not NFO/BFO.
func NewOption(exchange Exchange, symbol string, expiry Date, strike float64, optType OptionType) Instrument {
	return Instrument{Kind: KindOption, Exchange: exchange, Symbol: symbol, Expiry: expiry, Strike: strike, OptionType: optType}
}

// ResolvedInstrument is what the resolver hands back: the broker's own
// identifiers for a canonical Instrument.
type ResolvedInstrument struct {
	Token        string
	BrokerSymbol string
	Exchange     string // broker-native venue code, e.g. "NFO" for a future
}

// String renders an Instrument for logging and error messages.
func (i Instrument) String() string {
	switch i.Kind {
	case KindIndex, KindEquity:
		return fmt.Sprintf("%s:%s:%s", i.Kind, i.Exchange, i.Symbol)
	case KindFuture:
		return fmt.Sprintf("%s:%s:%s:%s", i.Kind, i.Exchange, i.Symbol, i.Expiry)
	case KindOption:
		return fmt.Sprintf("%s:%s:%s:%s:%.2f:%s", i.Kind, i.Exchange, i.Symbol, i.Expiry, i.Strike, i.OptionType)
	default:
		return "INSTRUMENT(invalid)"
	}
}
