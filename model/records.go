package model

import "time"

// Side is the buy/sell direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType is the canonical order type.
type OrderType string

const (
	Market    OrderType = "MARKET"
	Limit     OrderType = "LIMIT"
	StopLoss  OrderType = "SL"
	StopLossM OrderType = "SL_M"
)

// ProductType is the canonical margin/product type.
type ProductType string

const (
	CNC  ProductType = "CNC"
	MIS  ProductType = "MIS"
	NRML ProductType = "NRML"
)

// OrderStatus is the canonical, 5-valued order status every vendor status
// folds into.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusOpen      OrderStatus = "OPEN"
	StatusComplete  OrderStatus = "COMPLETE"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
)

// OrderParams is what a caller supplies to place an order. It names a
// canonical Instrument, which the client resolves before placing.
type OrderParams struct {
	Instrument  Instrument
	Side        Side
	Quantity    int
	Price       float64 // ignored for Market orders
	TriggerPrice float64
	OrderType   OrderType
	Product     ProductType
}

// Order is the canonical, normalized view of a vendor order.
type Order struct {
	OrderID       string
	Instrument    Instrument
	Side          Side
	Quantity      int
	FilledQty     int
	Price         float64
	AveragePrice  float64
	OrderType     OrderType
	Product       ProductType
	Status        OrderStatus
	StatusMessage string
	PlacedAt      time.Time
}

// Trade is a single fill.
type Trade struct {
	TradeID    string
	OrderID    string
	Instrument Instrument
	Side       Side
	Quantity   int
	Price      float64
	TradedAt   time.Time
}

// Position is a net position in one instrument for one product type.
type Position struct {
	Instrument   Instrument
	Product      ProductType
	Quantity     int // signed: positive long, negative short
	AveragePrice float64
	LastPrice    float64
	PnL          float64
}

// Holding is a long-term (CNC-equivalent) equity holding.
type Holding struct {
	Instrument   Instrument
	Quantity     int
	AveragePrice float64
	LastPrice    float64
}

// Fund is available margin/cash.
type Fund struct {
	Currency        string
	AvailableCash   float64
	UsedMargin      float64
	AvailableMargin float64
}

// Profile is basic account identity.
type Profile struct {
	ClientID string
	Name     string
	Email    string
}

// Margin is the pre-trade margin requirement for a prospective order:
// the blocked amount before any same-side holding/position offset
// (Total, further split into Span + Exposure + OptionPremium by the
// vendor's risk model) against the amount actually blocked after that
// offset (FinalTotal). Benefit is the margin relief the offset earns.
type Margin struct {
	Total         float64
	Span          float64
	Exposure      float64
	OptionPremium float64
	FinalTotal    float64
	Benefit       float64
}

// CloseParams is what closeAllPositions derives from a non-flat Position
// to flatten it with a single market order.
type CloseParams struct {
	Instrument Instrument
	Side       Side // opposite of the position's sign
	Quantity   int  // absolute value of the position's quantity
	Product    ProductType
}
