// Package store is the relational instrument store: schema, refresh, and
// staleness tracking. Connection handling follows the teacher pack's
// database layer (modernc.org/sqlite, WAL journal mode, foreign keys on),
// with MaxOpenConns pinned to 1 so the single-writer discipline required
// by an atomic full-table refresh is enforced by the pool itself rather
// than by an extra application-level mutex.
package store

import (
	"context"
	_ "embed"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
)

//go:embed schema.sql
var schemaSQL string

// FetchFunc retrieves and parses a vendor's current instrument dump. It is
// supplied by the caller (normally a BrokerAdapter's FetchInstruments)
// so the store has no vendor-specific knowledge.
type FetchFunc func(ctx context.Context) (parser.ParsedInstruments, error)

// Store is the broker-scoped instrument store: one *sql.DB backing the
// shared instrument/equity/future/option tables, plus this broker's own
// broker_tokens rows.
type Store struct {
	db       *sql.DB
	brokerID string
	log      zerolog.Logger
}

// Open creates or attaches to the sqlite database at path and ensures the
// schema exists. brokerID scopes staleness tracking to one vendor; each
// broker is expected to own its own database file (Refresh truncates the
// shared instrument/equity/future/option tables wholesale on every run),
// so two brokers must never point Open at the same path.
func Open(ctx context.Context, path, brokerID string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{db: db, brokerID: brokerID, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Init ensures the schema exists and, if the store is empty or stale for
// this broker, performs a full refresh via fetch.
func (s *Store) Init(ctx context.Context, fetch FetchFunc) error {
	return s.EnsureFresh(ctx, fetch)
}

// EnsureFresh refreshes the store if its per-broker last_updated metadata
// is absent or not today's local date.
func (s *Store) EnsureFresh(ctx context.Context, fetch FetchFunc) error {
	stale, err := s.isStale(ctx)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}
	return s.Refresh(ctx, fetch)
}

func (s *Store) isStale(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM _meta WHERE key = ?`, s.lastUpdatedKey()).Scan(&value)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: staleness check: %w", err)
	}
	return value != time.Now().Format("2006-01-02"), nil
}

func (s *Store) lastUpdatedKey() string { return s.brokerID + ":last_updated" }

// Refresh rebuilds this broker's instrument data from fetch in a single
// transaction: truncate every data table in dependency order (leaves
// first: broker_tokens, options, futures, equities, then instruments
// itself), then repopulate indices, equities, futures, options — rows
// referencing an unresolvable underlying are skipped and logged, never
// aborting the whole refresh. Truncating before repopulating is what
// keeps an instrument dropped from the vendor's dump from lingering as
// an orphaned row with no broker_tokens entry.
func (s *Store) Refresh(ctx context.Context, fetch FetchFunc) error {
	parsed, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("store: fetch instruments: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin refresh tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"broker_tokens", "options", "futures", "equities", "instruments"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("store: truncate %s: %w", table, err)
		}
	}

	underlyingID := make(map[string]int64) // "exchange:symbol" -> instruments.id

	for _, idx := range parsed.Indices {
		id, err := s.upsertInstrument(ctx, tx, idx.Exchange, idx.Symbol, "INDICES", idx.Name, 0, 0)
		if err != nil {
			return err
		}
		if err := s.upsertBrokerToken(ctx, tx, id, idx.Token, idx.BrokerSymbol); err != nil {
			return err
		}
		underlyingID[underlyingKey(idx.Exchange, idx.Symbol)] = id
	}

	for _, eq := range parsed.Equities {
		id, err := s.upsertInstrument(ctx, tx, eq.Exchange, eq.Symbol, "EQ", eq.Name, eq.LotSize, eq.TickSize)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO equities (instrument_id, isin) VALUES (?, ?)`, id, eq.ISIN); err != nil {
			return fmt.Errorf("store: insert equity: %w", err)
		}
		if err := s.upsertBrokerToken(ctx, tx, id, eq.Token, eq.BrokerSymbol); err != nil {
			return err
		}
		underlyingID[underlyingKey(eq.Exchange, eq.Symbol)] = id
	}

	for _, fut := range parsed.Futures {
		uid, ok := underlyingID[underlyingKey(fut.UnderlyingExchange, fut.Symbol)]
		if !ok {
			s.log.Warn().Str("symbol", fut.Symbol).Str("underlying_exchange", string(fut.UnderlyingExchange)).
				Msg("store: skipping future with unresolvable underlying")
			continue
		}
		id, err := s.upsertInstrument(ctx, tx, fut.DerivativeExchange, fut.Symbol, "FUT", fut.Name, fut.LotSize, fut.TickSize)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO futures (instrument_id, underlying_id, expiry) VALUES (?, ?, ?)`,
			id, uid, fut.Expiry.String()); err != nil {
			return fmt.Errorf("store: insert future: %w", err)
		}
		if err := s.upsertBrokerToken(ctx, tx, id, fut.Token, fut.BrokerSymbol); err != nil {
			return err
		}
	}

	for _, opt := range parsed.Options {
		uid, ok := underlyingID[underlyingKey(opt.UnderlyingExchange, opt.Symbol)]
		if !ok {
			s.log.Warn().Str("symbol", opt.Symbol).Str("underlying_exchange", string(opt.UnderlyingExchange)).
				Msg("store: skipping option with unresolvable underlying")
			continue
		}
		id, err := s.upsertInstrument(ctx, tx, opt.DerivativeExchange, opt.Symbol, "OPT", opt.Name, opt.LotSize, opt.TickSize)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO options (instrument_id, underlying_id, expiry, strike, option_type) VALUES (?, ?, ?, ?, ?)`,
			id, uid, opt.Expiry.String(), opt.Strike, string(opt.OptionType)); err != nil {
			return fmt.Errorf("store: insert option: %w", err)
		}
		if err := s.upsertBrokerToken(ctx, tx, id, opt.Token, opt.BrokerSymbol); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO _meta (key, value) VALUES (?, ?)`,
		s.lastUpdatedKey(), time.Now().Format("2006-01-02")); err != nil {
		return fmt.Errorf("store: write last_updated: %w", err)
	}

	return tx.Commit()
}

func underlyingKey(exchange model.Exchange, symbol string) string {
	return string(exchange) + ":" + symbol
}

func (s *Store) upsertInstrument(ctx context.Context, tx *sql.Tx, exchange model.Exchange, symbol, segment, name string, lotSize int, tickSize float64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM instruments WHERE exchange = ? AND symbol = ? AND segment = ?`,
		exchange, symbol, segment).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("store: lookup instrument: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO instruments (exchange, symbol, segment, name, lot_size, tick_size) VALUES (?, ?, ?, ?, ?, ?)`,
		exchange, symbol, segment, name, lotSize, tickSize)
	if err != nil {
		return 0, fmt.Errorf("store: insert instrument: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) upsertBrokerToken(ctx context.Context, tx *sql.Tx, instrumentID int64, token, brokerSymbol string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO broker_tokens (instrument_id, broker_id, token, broker_symbol) VALUES (?, ?, ?, ?)`,
		instrumentID, s.brokerID, token, brokerSymbol)
	if err != nil {
		return fmt.Errorf("store: insert broker_token: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for the resolver's read-only joins.
func (s *Store) DB() *sql.DB { return s.db }

// BrokerID returns the broker this store instance is scoped to.
func (s *Store) BrokerID() string { return s.brokerID }
