package client

import (
	"context"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/config"
	"github.com/bjoelf/ttconnect-go/model"
)

// job is one unit of work submitted to a SyncClient's worker goroutine.
type job func(*AsyncClient)

// SyncClient gives every AsyncClient call a single-goroutine home: one
// dedicated worker drains a work channel and runs everything against the
// same AsyncClient, so callers who never want to think about goroutines
// get a plain blocking method set instead. The dedicated-goroutine-plus-
// channel shape is the direct analogue of a single background event loop
// fed through a thread-safe submission queue.
type SyncClient struct {
	async *AsyncClient
	jobs  chan job
	done  chan struct{}
}

// NewSync builds the AsyncClient and starts its worker goroutine.
func NewSync(ctx context.Context, cfg config.Config, opts Options) (*SyncClient, error) {
	async, err := New(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	c := &SyncClient{
		async: async,
		jobs:  make(chan job),
		done:  make(chan struct{}),
	}
	go c.run()
	return c, nil
}

func (c *SyncClient) run() {
	defer close(c.done)
	for j := range c.jobs {
		j(c.async)
	}
}

// submit runs fn on the worker goroutine and blocks for its result.
func submit[T any](c *SyncClient, fn func(*AsyncClient) T) T {
	result := make(chan T, 1)
	c.jobs <- func(a *AsyncClient) {
		result <- fn(a)
	}
	return <-result
}

func (c *SyncClient) Login(ctx context.Context) error {
	return submit(c, func(a *AsyncClient) error { return a.Login(ctx) })
}

func (c *SyncClient) RefreshSession(ctx context.Context) error {
	return submit(c, func(a *AsyncClient) error { return a.RefreshSession(ctx) })
}

func (c *SyncClient) Resolve(ctx context.Context, inst model.Instrument) (model.ResolvedInstrument, error) {
	type result struct {
		resolved model.ResolvedInstrument
		err      error
	}
	r := submit(c, func(a *AsyncClient) result {
		resolved, err := a.Resolve(ctx, inst)
		return result{resolved, err}
	})
	return r.resolved, r.err
}

func (c *SyncClient) GetProfile(ctx context.Context) (model.Profile, error) {
	type result struct {
		profile model.Profile
		err     error
	}
	r := submit(c, func(a *AsyncClient) result {
		p, err := a.GetProfile(ctx)
		return result{p, err}
	})
	return r.profile, r.err
}

func (c *SyncClient) GetFunds(ctx context.Context) (model.Fund, error) {
	type result struct {
		fund model.Fund
		err  error
	}
	r := submit(c, func(a *AsyncClient) result {
		f, err := a.GetFunds(ctx)
		return result{f, err}
	})
	return r.fund, r.err
}

func (c *SyncClient) GetHoldings(ctx context.Context) ([]model.Holding, error) {
	type result struct {
		holdings []model.Holding
		err      error
	}
	r := submit(c, func(a *AsyncClient) result {
		h, err := a.GetHoldings(ctx)
		return result{h, err}
	})
	return r.holdings, r.err
}

func (c *SyncClient) GetPositions(ctx context.Context) ([]model.Position, error) {
	type result struct {
		positions []model.Position
		err       error
	}
	r := submit(c, func(a *AsyncClient) result {
		p, err := a.GetPositions(ctx)
		return result{p, err}
	})
	return r.positions, r.err
}

func (c *SyncClient) GetOrders(ctx context.Context) ([]model.Order, error) {
	type result struct {
		orders []model.Order
		err    error
	}
	r := submit(c, func(a *AsyncClient) result {
		o, err := a.GetOrders(ctx)
		return result{o, err}
	})
	return r.orders, r.err
}

func (c *SyncClient) GetTrades(ctx context.Context) ([]model.Trade, error) {
	type result struct {
		trades []model.Trade
		err    error
	}
	r := submit(c, func(a *AsyncClient) result {
		t, err := a.GetTrades(ctx)
		return result{t, err}
	})
	return r.trades, r.err
}

func (c *SyncClient) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	type result struct {
		order model.Order
		err   error
	}
	r := submit(c, func(a *AsyncClient) result {
		o, err := a.GetOrder(ctx, orderID)
		return result{o, err}
	})
	return r.order, r.err
}

func (c *SyncClient) PlaceOrder(ctx context.Context, params model.OrderParams) (string, error) {
	type result struct {
		orderID string
		err     error
	}
	r := submit(c, func(a *AsyncClient) result {
		id, err := a.PlaceOrder(ctx, params)
		return result{id, err}
	})
	return r.orderID, r.err
}

func (c *SyncClient) GetOrderMargin(ctx context.Context, params model.OrderParams) (model.Margin, error) {
	type result struct {
		margin model.Margin
		err    error
	}
	r := submit(c, func(a *AsyncClient) result {
		m, err := a.GetOrderMargin(ctx, params)
		return result{m, err}
	})
	return r.margin, r.err
}

func (c *SyncClient) ModifyOrder(ctx context.Context, orderID string, params model.OrderParams) error {
	return submit(c, func(a *AsyncClient) error { return a.ModifyOrder(ctx, orderID, params) })
}

func (c *SyncClient) CancelOrder(ctx context.Context, orderID string) error {
	return submit(c, func(a *AsyncClient) error { return a.CancelOrder(ctx, orderID) })
}

func (c *SyncClient) CancelAllOrders(ctx context.Context) (succeeded, failed []string) {
	type result struct {
		succeeded, failed []string
	}
	r := submit(c, func(a *AsyncClient) result {
		s, f := a.CancelAllOrders(ctx)
		return result{s, f}
	})
	return r.succeeded, r.failed
}

func (c *SyncClient) CloseAllPositions(ctx context.Context) (placed []string, failed []string) {
	type result struct {
		placed []string
		failed []string
	}
	r := submit(c, func(a *AsyncClient) result {
		p, f := a.CloseAllPositions(ctx)
		return result{p, f}
	})
	return r.placed, r.failed
}

func (c *SyncClient) Stream(ctx context.Context) (broker.StreamingClient, error) {
	type result struct {
		stream broker.StreamingClient
		err    error
	}
	r := submit(c, func(a *AsyncClient) result {
		s, err := a.Stream(ctx)
		return result{s, err}
	})
	return r.stream, r.err
}

// Close stops the worker goroutine and closes the underlying AsyncClient.
func (c *SyncClient) Close() error {
	err := submit(c, func(a *AsyncClient) error { return a.Close() })
	close(c.jobs)
	<-c.done
	return err
}
