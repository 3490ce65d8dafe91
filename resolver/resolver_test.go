package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
	"github.com/bjoelf/ttconnect-go/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, "file::memory:?cache=shared", "fake", zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	err = st.Refresh(ctx, func(ctx context.Context) (parser.ParsedInstruments, error) {
		return parser.ParsedInstruments{
			Equities: []parser.EquityRow{
				{Exchange: model.NSE, Symbol: "INFY", Name: "Infosys", Token: "408065", BrokerSymbol: "INFY-EQ"},
			},
			Futures: []parser.FutureRow{
				{
					DerivativeExchange: model.NFO, UnderlyingExchange: model.NSE, Symbol: "INFY",
					Expiry: model.Date{Year: 2026, Month: 8, Day: 27},
					Token:  "50201", BrokerSymbol: "INFY26AUGFUT",
				},
			},
			Options: []parser.OptionRow{
				{
					DerivativeExchange: model.NFO, UnderlyingExchange: model.NSE, Symbol: "INFY",
					Expiry: model.Date{Year: 2026, Month: 8, Day: 27}, Strike: 1800, OptionType: model.CE,
					Token: "50301", BrokerSymbol: "INFY26AUG1800CE",
				},
			},
		}, nil
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return st
}

func TestResolve_EquityHit(t *testing.T) {
	st := newTestStore(t)
	r := New(st.DB(), "fake")

	got, err := r.Resolve(context.Background(), model.NewEquity(model.NSE, "INFY"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Token != "408065" || got.BrokerSymbol != "INFY-EQ" {
		t.Fatalf("unexpected resolved instrument: %+v", got)
	}
}

func TestResolve_FutureAndOptionJoinThroughUnderlying(t *testing.T) {
	st := newTestStore(t)
	r := New(st.DB(), "fake")
	ctx := context.Background()
	expiry := model.Date{Year: 2026, Month: 8, Day: 27}

	fut, err := r.Resolve(ctx, model.NewFuture(model.NSE, "INFY", expiry))
	if err != nil {
		t.Fatalf("resolve future: %v", err)
	}
	if fut.Token != "50201" {
		t.Fatalf("unexpected future token: %+v", fut)
	}

	opt, err := r.Resolve(ctx, model.NewOption(model.NSE, "INFY", expiry, 1800, model.CE))
	if err != nil {
		t.Fatalf("resolve option: %v", err)
	}
	if opt.Token != "50301" {
		t.Fatalf("unexpected option token: %+v", opt)
	}
}

func TestResolve_UnknownInstrumentReturnsNotFoundError(t *testing.T) {
	st := newTestStore(t)
	r := New(st.DB(), "fake")

	_, err := r.Resolve(context.Background(), model.NewEquity(model.NSE, "NOSUCHSYMBOL"))
	var notFound *brokererr.InstrumentNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected InstrumentNotFoundError, got %v (%T)", err, err)
	}
}

func TestResolve_CachesHitsAndInvalidateClears(t *testing.T) {
	st := newTestStore(t)
	r := New(st.DB(), "fake")
	ctx := context.Background()
	inst := model.NewEquity(model.NSE, "INFY")

	if _, err := r.Resolve(ctx, inst); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, ok := r.cache[inst]; !ok {
		t.Fatalf("expected cache to be populated after first resolve")
	}

	r.Invalidate()
	if len(r.cache) != 0 {
		t.Fatalf("expected cache to be empty after Invalidate, got %d entries", len(r.cache))
	}
}

