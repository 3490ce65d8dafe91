package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), "file::memory:?cache=shared", "fake", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestEnsureFresh_RefreshesEmptyStoreOnce(t *testing.T) {
	st := openTest(t)
	calls := 0
	fetch := func(ctx context.Context) (parser.ParsedInstruments, error) {
		calls++
		return parser.ParsedInstruments{
			Equities: []parser.EquityRow{{Exchange: model.NSE, Symbol: "TCS", Token: "2953217", BrokerSymbol: "TCS-EQ"}},
		}, nil
	}

	if err := st.EnsureFresh(context.Background(), fetch); err != nil {
		t.Fatalf("first ensure fresh: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fetch to be called once, got %d", calls)
	}

	if err := st.EnsureFresh(context.Background(), fetch); err != nil {
		t.Fatalf("second ensure fresh: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fetch not to be called again on the same day, got %d calls", calls)
	}
}

func TestRefresh_SkipsDerivativeWithUnresolvableUnderlying(t *testing.T) {
	st := openTest(t)
	err := st.Refresh(context.Background(), func(ctx context.Context) (parser.ParsedInstruments, error) {
		return parser.ParsedInstruments{
			Futures: []parser.FutureRow{
				{
					DerivativeExchange: model.NFO, UnderlyingExchange: model.NSE, Symbol: "GHOST",
					Expiry: model.Date{Year: 2026, Month: 8, Day: 27}, Token: "1", BrokerSymbol: "GHOSTFUT",
				},
			},
		}, nil
	})
	if err != nil {
		t.Fatalf("refresh with unresolvable underlying should not abort: %v", err)
	}

	var count int
	if err := st.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM futures`).Scan(&count); err != nil {
		t.Fatalf("count futures: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected the unresolvable future to be skipped, found %d rows", count)
	}
}

func TestRefresh_ReplacesTokensOnRerunWithSameDump(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()
	row := parser.EquityRow{Exchange: model.NSE, Symbol: "INFY", Token: "408065", BrokerSymbol: "INFY-EQ"}

	fetch := func(ctx context.Context) (parser.ParsedInstruments, error) {
		return parser.ParsedInstruments{Equities: []parser.EquityRow{row}}, nil
	}
	if err := st.Refresh(ctx, fetch); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if err := st.Refresh(ctx, fetch); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	var count int
	if err := st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM broker_tokens WHERE broker_id = ?`, "fake").Scan(&count); err != nil {
		t.Fatalf("count broker_tokens: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one surviving broker_tokens row after re-refresh, got %d", count)
	}
}

func TestRefresh_TruncatesDataTablesSoDroppedInstrumentsDoNotOrphan(t *testing.T) {
	st := openTest(t)
	ctx := context.Background()

	first := parser.ParsedInstruments{
		Equities: []parser.EquityRow{
			{Exchange: model.NSE, Symbol: "INFY", Token: "408065", BrokerSymbol: "INFY-EQ"},
			{Exchange: model.NSE, Symbol: "TCS", Token: "2953217", BrokerSymbol: "TCS-EQ"},
		},
	}
	if err := st.Refresh(ctx, func(ctx context.Context) (parser.ParsedInstruments, error) { return first, nil }); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	// TCS has been delisted from the vendor's latest dump.
	second := parser.ParsedInstruments{
		Equities: []parser.EquityRow{
			{Exchange: model.NSE, Symbol: "INFY", Token: "408065", BrokerSymbol: "INFY-EQ"},
		},
	}
	if err := st.Refresh(ctx, func(ctx context.Context) (parser.ParsedInstruments, error) { return second, nil }); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	var instrumentCount, equityCount, tokenCount int
	if err := st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM instruments`).Scan(&instrumentCount); err != nil {
		t.Fatalf("count instruments: %v", err)
	}
	if err := st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM equities`).Scan(&equityCount); err != nil {
		t.Fatalf("count equities: %v", err)
	}
	if err := st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM broker_tokens`).Scan(&tokenCount); err != nil {
		t.Fatalf("count broker_tokens: %v", err)
	}
	if instrumentCount != 1 || equityCount != 1 || tokenCount != 1 {
		t.Fatalf("expected the dropped instrument to be fully gone (no orphan row), got instruments=%d equities=%d broker_tokens=%d",
			instrumentCount, equityCount, tokenCount)
	}

	var orphanTokens int
	if err := st.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM broker_tokens bt LEFT JOIN instruments i ON i.id = bt.instrument_id WHERE i.id IS NULL`,
	).Scan(&orphanTokens); err != nil {
		t.Fatalf("count orphan broker_tokens: %v", err)
	}
	if orphanTokens != 0 {
		t.Fatalf("expected every broker_tokens row to reference a live instrument, found %d orphans", orphanTokens)
	}
}
