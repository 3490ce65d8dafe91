package client

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
	"github.com/bjoelf/ttconnect-go/resolver"
	"github.com/bjoelf/ttconnect-go/store"
)

// fakeAdapter is a minimal broker.Adapter stand-in so AsyncClient's batch
// operations can be exercised without any real vendor HTTP traffic.
type fakeAdapter struct {
	orders        []model.Order
	positions     []model.Position
	cancelCalls   []string
	placedOrders  []model.OrderParams
	failOrderID   string
	failInstrument string
}

func (f *fakeAdapter) Login(ctx context.Context) error                                { return nil }
func (f *fakeAdapter) RefreshSession(ctx context.Context) error                        { return nil }
func (f *fakeAdapter) FetchInstruments(ctx context.Context) (parser.ParsedInstruments, error) {
	return parser.ParsedInstruments{}, nil
}
func (f *fakeAdapter) GetProfile(ctx context.Context) (model.Profile, error)     { return model.Profile{}, nil }
func (f *fakeAdapter) GetFunds(ctx context.Context) (model.Fund, error)          { return model.Fund{}, nil }
func (f *fakeAdapter) GetHoldings(ctx context.Context) ([]model.Holding, error)  { return nil, nil }
func (f *fakeAdapter) GetPositions(ctx context.Context) ([]model.Position, error) {
	return f.positions, nil
}
func (f *fakeAdapter) GetOrders(ctx context.Context) ([]model.Order, error) { return f.orders, nil }
func (f *fakeAdapter) GetTrades(ctx context.Context) ([]model.Trade, error) { return nil, nil }
func (f *fakeAdapter) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	return model.Order{}, nil
}

func (f *fakeAdapter) PlaceOrder(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (string, error) {
	if params.Instrument.Symbol == f.failInstrument {
		return "", errPlaceFailed
	}
	f.placedOrders = append(f.placedOrders, params)
	return "new-order-id", nil
}
func (f *fakeAdapter) ModifyOrder(ctx context.Context, orderID string, params model.OrderParams) error {
	return nil
}
func (f *fakeAdapter) CancelOrder(ctx context.Context, orderID string) error {
	if orderID == f.failOrderID {
		return errCancelFailed
	}
	f.cancelCalls = append(f.cancelCalls, orderID)
	return nil
}
func (f *fakeAdapter) GetMargin(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (model.Margin, error) {
	return model.Margin{}, nil
}
func (f *fakeAdapter) Capabilities() broker.Capabilities { return broker.Capabilities{} }
func (f *fakeAdapter) BrokerID() string                  { return "fake" }

var errCancelFailed = errString("cancel failed")
var errPlaceFailed = errString("place failed")

type errString string

func (e errString) Error() string { return string(e) }

func newTestResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, "file::memory:?cache=shared", "fake", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	err = st.Refresh(ctx, func(ctx context.Context) (parser.ParsedInstruments, error) {
		return parser.ParsedInstruments{
			Equities: []parser.EquityRow{
				{Exchange: model.NSE, Symbol: "INFY", Name: "Infosys", Token: "408065", BrokerSymbol: "INFY"},
				{Exchange: model.NSE, Symbol: "TCS", Name: "TCS", Token: "2953217", BrokerSymbol: "TCS"},
			},
		}, nil
	})
	require.NoError(t, err)

	return resolver.New(st.DB(), "fake")
}

func TestCancelAllOrders_OnlyTargetsOpenAndPending(t *testing.T) {
	adapter := &fakeAdapter{
		orders: []model.Order{
			{OrderID: "1", Status: model.StatusOpen},
			{OrderID: "2", Status: model.StatusPending},
			{OrderID: "3", Status: model.StatusComplete},
			{OrderID: "4", Status: model.StatusCancelled},
		},
	}
	c := &AsyncClient{adapter: adapter, resolver: newTestResolver(t)}

	succeeded, failed := c.CancelAllOrders(context.Background())
	require.Empty(t, failed)
	require.ElementsMatch(t, []string{"1", "2"}, succeeded)
}

func TestCancelAllOrders_CollectsFailuresWithoutAborting(t *testing.T) {
	adapter := &fakeAdapter{
		orders: []model.Order{
			{OrderID: "1", Status: model.StatusOpen},
			{OrderID: "2", Status: model.StatusOpen},
		},
		failOrderID: "1",
	}
	c := &AsyncClient{adapter: adapter, resolver: newTestResolver(t)}

	succeeded, failed := c.CancelAllOrders(context.Background())
	require.Equal(t, []string{"1"}, failed)
	require.Equal(t, []string{"2"}, succeeded)
}

func TestCloseAllPositions_SkipsFlatPositions(t *testing.T) {
	adapter := &fakeAdapter{
		positions: []model.Position{
			{Instrument: model.NewEquity(model.NSE, "INFY"), Quantity: 0, Product: model.MIS},
			{Instrument: model.NewEquity(model.NSE, "TCS"), Quantity: -10, Product: model.MIS},
		},
	}
	c := &AsyncClient{adapter: adapter, resolver: newTestResolver(t)}

	placed, failed := c.CloseAllPositions(context.Background())
	require.Empty(t, failed)
	require.Equal(t, []string{"new-order-id"}, placed)
	require.Len(t, adapter.placedOrders, 1)
	require.Equal(t, model.Buy, adapter.placedOrders[0].Side)
	require.Equal(t, 10, adapter.placedOrders[0].Quantity)
}

func TestCloseAllPositions_CollectsFailuresWithoutAborting(t *testing.T) {
	adapter := &fakeAdapter{
		positions: []model.Position{
			{Instrument: model.NewEquity(model.NSE, "INFY"), Quantity: 5, Product: model.MIS},
			{Instrument: model.NewEquity(model.NSE, "TCS"), Quantity: 10, Product: model.MIS},
		},
		failInstrument: "INFY",
	}
	c := &AsyncClient{adapter: adapter, resolver: newTestResolver(t)}

	placed, failed := c.CloseAllPositions(context.Background())
	require.Equal(t, []string{"INFY"}, failed)
	require.Equal(t, []string{"new-order-id"}, placed)
}
