// Package resolver turns a canonical Instrument into the broker's own
// token/symbol/exchange, joining through the instrument store's schema.
package resolver

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/model"
)

// DB is the subset of *sql.DB the resolver needs — satisfied by
// *store.Store.DB().
type DB interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Resolver resolves canonical instruments against one broker's rows in the
// instrument store, caching hits for the lifetime of the session (or until
// Invalidate is called after a refresh).
type Resolver struct {
	db       DB
	brokerID string

	mu    sync.RWMutex
	cache map[model.Instrument]model.ResolvedInstrument
}

func New(db DB, brokerID string) *Resolver {
	return &Resolver{db: db, brokerID: brokerID, cache: make(map[model.Instrument]model.ResolvedInstrument)}
}

// Invalidate drops the entire cache. Call after a store refresh — tokens
// may have been reassigned by the vendor's new instrument dump.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[model.Instrument]model.ResolvedInstrument)
}

// Resolve returns the broker token/symbol/exchange for a canonical
// instrument, or InstrumentNotFoundError if no row matches. It never
// invents a token.
func (r *Resolver) Resolve(ctx context.Context, inst model.Instrument) (model.ResolvedInstrument, error) {
	r.mu.RLock()
	if hit, ok := r.cache[inst]; ok {
		r.mu.RUnlock()
		return hit, nil
	}
	r.mu.RUnlock()

	var (
		resolved model.ResolvedInstrument
		err      error
	)
	switch inst.Kind {
	case model.KindIndex:
		resolved, err = r.resolveDirect(ctx, inst.Exchange, inst.Symbol, "INDICES")
	case model.KindEquity:
		resolved, err = r.resolveDirect(ctx, inst.Exchange, inst.Symbol, "EQ")
	case model.KindFuture:
		resolved, err = r.resolveFuture(ctx, inst)
	case model.KindOption:
		resolved, err = r.resolveOption(ctx, inst)
	default:
		return model.ResolvedInstrument{}, brokererr.NewInstrumentNotFoundError(
			fmt.Sprintf("resolver: invalid instrument kind for %s", inst), "")
	}
	if err != nil {
		return model.ResolvedInstrument{}, err
	}

	r.mu.Lock()
	r.cache[inst] = resolved
	r.mu.Unlock()
	return resolved, nil
}

func (r *Resolver) resolveDirect(ctx context.Context, exchange model.Exchange, symbol, segment string) (model.ResolvedInstrument, error) {
	const q = `
		SELECT bt.token, bt.broker_symbol, i.exchange
		FROM instruments i
		JOIN broker_tokens bt ON bt.instrument_id = i.id
		WHERE i.exchange = ? AND i.symbol = ? AND i.segment = ? AND bt.broker_id = ?`

	var res model.ResolvedInstrument
	err := r.db.QueryRowContext(ctx, q, exchange, symbol, segment, r.brokerID).
		Scan(&res.Token, &res.BrokerSymbol, &res.Exchange)
	if err == sql.ErrNoRows {
		return model.ResolvedInstrument{}, notFound(exchange, symbol)
	}
	if err != nil {
		return model.ResolvedInstrument{}, fmt.Errorf("resolver: direct lookup: %w", err)
	}
	return res, nil
}

func (r *Resolver) resolveFuture(ctx context.Context, inst model.Instrument) (model.ResolvedInstrument, error) {
	const q = `
		SELECT bt.token, bt.broker_symbol, i.exchange
		FROM futures f
		JOIN instruments i ON i.id = f.instrument_id
		JOIN instruments u ON u.id = f.underlying_id
		JOIN broker_tokens bt ON bt.instrument_id = i.id
		WHERE u.exchange = ? AND u.symbol = ? AND f.expiry = ? AND bt.broker_id = ?`

	var res model.ResolvedInstrument
	err := r.db.QueryRowContext(ctx, q, inst.Exchange, inst.Symbol, inst.Expiry.String(), r.brokerID).
		Scan(&res.Token, &res.BrokerSymbol, &res.Exchange)
	if err == sql.ErrNoRows {
		return model.ResolvedInstrument{}, notFound(inst.Exchange, inst.Symbol)
	}
	if err != nil {
		return model.ResolvedInstrument{}, fmt.Errorf("resolver: future lookup: %w", err)
	}
	return res, nil
}

func (r *Resolver) resolveOption(ctx context.Context, inst model.Instrument) (model.ResolvedInstrument, error) {
	const q = `
		SELECT bt.token, bt.broker_symbol, i.exchange
		FROM options o
		JOIN instruments i ON i.id = o.instrument_id
		JOIN instruments u ON u.id = o.underlying_id
		JOIN broker_tokens bt ON bt.instrument_id = i.id
		WHERE u.exchange = ? AND u.symbol = ? AND o.expiry = ? AND o.strike = ? AND o.option_type = ? AND bt.broker_id = ?`

	var res model.ResolvedInstrument
	err := r.db.QueryRowContext(ctx, q, inst.Exchange, inst.Symbol, inst.Expiry.String(), inst.Strike, string(inst.OptionType), r.brokerID).
		Scan(&res.Token, &res.BrokerSymbol, &res.Exchange)
	if err == sql.ErrNoRows {
		return model.ResolvedInstrument{}, notFound(inst.Exchange, inst.Symbol)
	}
	if err != nil {
		return model.ResolvedInstrument{}, fmt.Errorf("resolver: option lookup: %w", err)
	}
	return res, nil
}

func notFound(exchange model.Exchange, symbol string) error {
	return brokererr.NewInstrumentNotFoundError(
		fmt.Sprintf("resolver: no broker token for %s:%s", exchange, symbol), "")
}
