// Package client assembles a broker.Adapter, resolver.Resolver and
// store.Store into the library's public entry point: AsyncClient for
// direct goroutine-based use, SyncClient for a blocking façade over it.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/config"
	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
	"github.com/bjoelf/ttconnect-go/resolver"
	"github.com/bjoelf/ttconnect-go/store"
)

// AsyncClient is the main library entry point: every method is safe to
// call concurrently and every blocking call accepts a context.
type AsyncClient struct {
	adapter  broker.Adapter
	resolver *resolver.Resolver
	store    *store.Store
	log      zerolog.Logger
}

// Options configures New beyond the bare broker Config.
type Options struct {
	StorePath string // sqlite file path for the instrument store
	Logger    zerolog.Logger
}

// New constructs the adapter for cfg.BrokerID and opens its instrument
// store. It does not refresh the store; Login does that.
func New(ctx context.Context, cfg config.Config, opts Options) (*AsyncClient, error) {
	adapter, err := broker.New(cfg)
	if err != nil {
		return nil, err
	}

	path := opts.StorePath
	if path == "" {
		path = cfg.BrokerID + "_instruments.db"
	}
	st, err := store.Open(ctx, path, cfg.BrokerID, opts.Logger)
	if err != nil {
		return nil, err
	}

	c := &AsyncClient{
		adapter:  adapter,
		resolver: resolver.New(st.DB(), cfg.BrokerID),
		store:    st,
		log:      opts.Logger,
	}
	return c, nil
}

// Login authenticates the underlying adapter and ensures the instrument
// store is fresh, invalidating the resolver cache on a refresh.
func (c *AsyncClient) Login(ctx context.Context) error {
	if err := c.adapter.Login(ctx); err != nil {
		return err
	}
	stale, err := c.refreshIfStale(ctx)
	if err != nil {
		return err
	}
	if stale {
		c.resolver.Invalidate()
	}
	return nil
}

func (c *AsyncClient) refreshIfStale(ctx context.Context) (bool, error) {
	refreshed := false
	err := c.store.EnsureFresh(ctx, func(ctx context.Context) (parser.ParsedInstruments, error) {
		refreshed = true
		return c.adapter.FetchInstruments(ctx)
	})
	return refreshed, err
}

func (c *AsyncClient) RefreshSession(ctx context.Context) error {
	return c.adapter.RefreshSession(ctx)
}

func (c *AsyncClient) Resolve(ctx context.Context, inst model.Instrument) (model.ResolvedInstrument, error) {
	return c.resolver.Resolve(ctx, inst)
}

func (c *AsyncClient) GetProfile(ctx context.Context) (model.Profile, error) { return c.adapter.GetProfile(ctx) }
func (c *AsyncClient) GetFunds(ctx context.Context) (model.Fund, error)      { return c.adapter.GetFunds(ctx) }
func (c *AsyncClient) GetHoldings(ctx context.Context) ([]model.Holding, error) {
	return c.adapter.GetHoldings(ctx)
}
func (c *AsyncClient) GetPositions(ctx context.Context) ([]model.Position, error) {
	return c.adapter.GetPositions(ctx)
}
func (c *AsyncClient) GetOrders(ctx context.Context) ([]model.Order, error) { return c.adapter.GetOrders(ctx) }
func (c *AsyncClient) GetTrades(ctx context.Context) ([]model.Trade, error) { return c.adapter.GetTrades(ctx) }
func (c *AsyncClient) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	return c.adapter.GetOrder(ctx, orderID)
}

// PlaceOrder verifies the instrument against the broker's capabilities,
// resolves it, and places the order.
func (c *AsyncClient) PlaceOrder(ctx context.Context, params model.OrderParams) (string, error) {
	if err := c.adapter.Capabilities().Verify(params.Instrument, params.OrderType, params.Product); err != nil {
		return "", err
	}
	resolved, err := c.resolver.Resolve(ctx, params.Instrument)
	if err != nil {
		return "", err
	}
	return c.adapter.PlaceOrder(ctx, resolved, params)
}

// GetOrderMargin resolves params.Instrument and returns the pre-trade
// margin requirement, letting a caller check affordability before calling
// PlaceOrder with the same params.
func (c *AsyncClient) GetOrderMargin(ctx context.Context, params model.OrderParams) (model.Margin, error) {
	resolved, err := c.resolver.Resolve(ctx, params.Instrument)
	if err != nil {
		return model.Margin{}, err
	}
	return c.adapter.GetMargin(ctx, resolved, params)
}

func (c *AsyncClient) ModifyOrder(ctx context.Context, orderID string, params model.OrderParams) error {
	return c.adapter.ModifyOrder(ctx, orderID, params)
}

func (c *AsyncClient) CancelOrder(ctx context.Context, orderID string) error {
	return c.adapter.CancelOrder(ctx, orderID)
}

// CancelAllOrders cancels every order in {PENDING, OPEN}, concurrently,
// and never returns an error itself — per-order failures land in failed.
func (c *AsyncClient) CancelAllOrders(ctx context.Context) (succeeded, failed []string) {
	orders, err := c.adapter.GetOrders(ctx)
	if err != nil {
		return nil, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, o := range orders {
		if o.Status != model.StatusOpen && o.Status != model.StatusPending {
			continue
		}
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			err := c.adapter.CancelOrder(ctx, orderID)
			mu.Lock()
			if err != nil {
				failed = append(failed, orderID)
			} else {
				succeeded = append(succeeded, orderID)
			}
			mu.Unlock()
		}(o.OrderID)
	}
	wg.Wait()
	return succeeded, failed
}

// CloseAllPositions places one offsetting market order per non-zero
// position, concurrently. placed holds the new order ID for every
// position that was successfully closed; failed holds the instrument
// symbol of every position that could not be.
func (c *AsyncClient) CloseAllPositions(ctx context.Context) (placed []string, failed []string) {
	positions, err := c.adapter.GetPositions(ctx)
	if err != nil {
		return nil, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, pos := range positions {
		if pos.Quantity == 0 {
			continue
		}
		wg.Add(1)
		go func(p model.Position) {
			defer wg.Done()
			closeParams := c.closeParamsFor(p)
			resolved, err := c.resolver.Resolve(ctx, p.Instrument)
			var orderID string
			if err == nil {
				orderID, err = c.adapter.PlaceOrder(ctx, resolved, model.OrderParams{
					Instrument: closeParams.Instrument,
					Side:       closeParams.Side,
					Quantity:   closeParams.Quantity,
					Product:    closeParams.Product,
					OrderType:  model.Market,
				})
			}
			mu.Lock()
			if err != nil {
				failed = append(failed, p.Instrument.Symbol)
			} else {
				placed = append(placed, orderID)
			}
			mu.Unlock()
		}(pos)
	}
	wg.Wait()
	return placed, failed
}

func (c *AsyncClient) closeParamsFor(pos model.Position) model.CloseParams {
	side := model.Sell
	qty := pos.Quantity
	if pos.Quantity < 0 {
		side = model.Buy
		qty = -qty
	}
	return model.CloseParams{Instrument: pos.Instrument, Side: side, Quantity: qty, Product: pos.Product}
}

// Stream returns a live tick subscription if the underlying adapter
// supports it, or UnsupportedFeatureError otherwise.
func (c *AsyncClient) Stream(ctx context.Context) (broker.StreamingClient, error) {
	capable, ok := c.adapter.(broker.StreamingCapable)
	if !ok {
		return nil, brokererr.NewUnsupportedFeatureError(
			fmt.Sprintf("%s does not support streaming", c.adapter.BrokerID()))
	}
	return capable.CreateStreamingClient(ctx)
}

func (c *AsyncClient) Close() error {
	return c.store.Close()
}
