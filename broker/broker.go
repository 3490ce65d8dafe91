// Package broker defines the vendor-agnostic adapter contract: the
// registry vendor packages register themselves into, the capability
// record every vendor publishes, and the transformer contract each vendor
// implements to map its own payload shapes onto the canonical model.
package broker

import (
	"context"

	"github.com/bjoelf/ttconnect-go/config"
	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
)

// AuthMode is a broker's supported credential flow.
type AuthMode string

const (
	AuthManual AuthMode = "MANUAL"
	AuthAuto   AuthMode = "AUTO"
)

// Adapter is the full contract a vendor package implements: session
// lifecycle, instrument dump retrieval, and every REST read/write.
type Adapter interface {
	Login(ctx context.Context) error
	RefreshSession(ctx context.Context) error
	FetchInstruments(ctx context.Context) (parser.ParsedInstruments, error)

	GetProfile(ctx context.Context) (model.Profile, error)
	GetFunds(ctx context.Context) (model.Fund, error)
	GetHoldings(ctx context.Context) ([]model.Holding, error)
	GetPositions(ctx context.Context) ([]model.Position, error)
	GetOrders(ctx context.Context) ([]model.Order, error)
	GetTrades(ctx context.Context) ([]model.Trade, error)
	GetOrder(ctx context.Context, orderID string) (model.Order, error)

	PlaceOrder(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (string, error)
	ModifyOrder(ctx context.Context, orderID string, params model.OrderParams) error
	CancelOrder(ctx context.Context, orderID string) error

	// GetMargin returns the pre-trade margin requirement for an
	// as-yet-unplaced order, letting a caller check affordability before
	// calling PlaceOrder.
	GetMargin(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (model.Margin, error)

	Capabilities() Capabilities
	BrokerID() string
}

// StreamingCapable is implemented by adapters that can hand back a
// streaming client of their own. Not every adapter needs to — the caller
// checks with a type assertion.
type StreamingCapable interface {
	CreateStreamingClient(ctx context.Context) (StreamingClient, error)
}

// StreamingClient is the minimal live market-data contract: subscribe a
// set of resolved instruments, unsubscribe, close. Defined here (not in
// package streaming) to avoid a dependency cycle, since Adapter needs to
// name the return type.
type StreamingClient interface {
	Subscribe(ctx context.Context, subscriptions []Subscription, onTick func(model.Tick)) error
	Unsubscribe(ctx context.Context, instruments []model.Instrument) error
	Close() error
}

// Subscription pairs a canonical instrument with its resolved broker
// identity, as the streaming client needs both: the canonical value to
// attach to outgoing Ticks, the resolved token to build the wire
// subscription.
type Subscription struct {
	Instrument model.Instrument
	Resolved   model.ResolvedInstrument
}

// Constructor builds an Adapter from runtime configuration.
type Constructor func(cfg config.Config) (Adapter, error)

var registry = make(map[string]Constructor)

// Register adds a vendor constructor to the package-level registry. Each
// vendor package calls this from its own init(), the direct generalization
// of a single-vendor constructor into a multi-vendor lookup.
func Register(brokerID string, ctor Constructor) {
	registry[brokerID] = ctor
}

// New builds the adapter for cfg.BrokerID, or an error if no vendor
// package registered that id.
func New(cfg config.Config) (Adapter, error) {
	ctor, ok := registry[cfg.BrokerID]
	if !ok {
		return nil, unsupportedBroker(cfg.BrokerID)
	}
	return ctor(cfg)
}

// Capabilities is a broker's frozen, immutable capability record.
type Capabilities struct {
	BrokerID    string
	Segments    map[model.Exchange]bool
	OrderTypes  map[model.OrderType]bool
	ProductTypes map[model.ProductType]bool
	AuthModes   map[AuthMode]bool
}

// Verify checks an order's instrument/type/product against this broker's
// capabilities. Indices are never tradeable, regardless of segment.
func (c Capabilities) Verify(inst model.Instrument, orderType model.OrderType, product model.ProductType) error {
	if inst.Kind == model.KindIndex {
		return unsupportedFeature("cannot trade an index instrument: " + inst.String())
	}
	if !c.Segments[inst.Exchange] {
		return unsupportedFeature(c.BrokerID + " does not support segment " + string(inst.Exchange))
	}
	if !c.OrderTypes[orderType] {
		return unsupportedFeature(c.BrokerID + " does not support order type " + string(orderType))
	}
	if !c.ProductTypes[product] {
		return unsupportedFeature(c.BrokerID + " does not support product type " + string(product))
	}
	return nil
}

// VerifyAuthMode checks a requested auth mode against what this broker
// supports, called once at adapter construction.
func (c Capabilities) VerifyAuthMode(mode AuthMode) error {
	if !c.AuthModes[mode] {
		return unsupportedFeature(c.BrokerID + " does not support auth mode " + string(mode))
	}
	return nil
}

// Transformer maps a vendor's wire shapes onto the canonical model and
// vice versa. Every vendor package provides exactly one implementation.
type Transformer interface {
	ToOrderParams(params model.OrderParams, resolved model.ResolvedInstrument) (any, error)
	ToOrderID(vendorResponse any) (string, error)
	ToCloseParams(pos model.Position) model.CloseParams
	ToProfile(vendorResponse any) (model.Profile, error)
	ToFund(vendorResponse any) (model.Fund, error)
	ToHolding(vendorResponse any) ([]model.Holding, error)
	ToPosition(vendorResponse any) ([]model.Position, error)
	ToOrder(vendorResponse any) ([]model.Order, error)
	ToTrade(vendorResponse any) ([]model.Trade, error)
	ToMargin(vendorResponse any) (model.Margin, error)
	ParseError(statusCode int, body []byte) error
}
