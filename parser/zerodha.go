package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bjoelf/ttconnect-go/model"
)

// indexNameMap translates a canonical index symbol to (exchange, broker
// tradingsymbol). Vendor-A's F&O rows carry a name field identifying the
// underlying index, but that name does not always match the tradingsymbol
// stored in the INDICES segment — every index that appears as an F&O
// underlying must be listed here.
var indexNameMap = map[string]struct {
	Exchange     model.Exchange
	BrokerSymbol string
}{
	"NIFTY":       {model.NSE, "NIFTY 50"},
	"BANKNIFTY":   {model.NSE, "NIFTY BANK"},
	"MIDCPNIFTY":  {model.NSE, "NIFTY MID SELECT"},
	"FINNIFTY":    {model.NSE, "NIFTY FIN SERVICE"},
	"NIFTY500":    {model.NSE, "NIFTY 500"},
	"NIFTYNXT50":  {model.NSE, "NIFTY NEXT 50"},
	"SENSEX":      {model.BSE, "SENSEX"},
	"BANKEX":      {model.BSE, "BANKEX"},
	"SENSEX50":    {model.BSE, "SNSX50"},
}

// brokerToCanonical is the reverse lookup: broker tradingsymbol → canonical
// symbol, e.g. "NIFTY 50" -> "NIFTY", "SNSX50" -> "SENSEX50".
var brokerToCanonical = func() map[string]string {
	m := make(map[string]string, len(indexNameMap))
	for canonical, v := range indexNameMap {
		m[v.BrokerSymbol] = canonical
	}
	return m
}()

var underlyingExchange = map[model.Exchange]model.Exchange{
	model.NFO: model.NSE,
	model.BFO: model.BSE,
}

// ZerodhaParser parses Vendor-A's CSV instrument dump. Processing order
// matches the store's required insert order: indices must be classified
// before futures/options reference them, though the actual insert
// ordering is enforced by the store, not by this parser.
type ZerodhaParser struct{}

func (ZerodhaParser) Parse(raw []byte) (ParsedInstruments, error) {
	var out ParsedInstruments

	r := csv.NewReader(strings.NewReader(string(raw)))
	records, err := r.ReadAll()
	if err != nil {
		return out, fmt.Errorf("zerodha parser: read csv: %w", err)
	}
	if len(records) == 0 {
		return out, nil
	}

	header := records[0]
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	get := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	for _, row := range records[1:] {
		exchange := model.Exchange(get(row, "exchange"))
		segment := get(row, "segment")
		instrumentType := get(row, "instrument_type")

		switch exchange {
		case model.NSE, model.BSE:
			switch {
			case segment == "INDICES":
				idx, err := parseZerodhaIndex(row, get, exchange, segment)
				if err != nil {
					return out, err
				}
				out.Indices = append(out.Indices, idx)
			case instrumentType == "EQ":
				eq, err := parseZerodhaEquity(row, get, exchange)
				if err != nil {
					return out, err
				}
				out.Equities = append(out.Equities, eq)
			}
		case model.NFO, model.BFO:
			switch instrumentType {
			case "FUT":
				fut, err := parseZerodhaFuture(row, get, exchange, segment)
				if err != nil {
					return out, err
				}
				out.Futures = append(out.Futures, fut)
			case "CE", "PE":
				opt, err := parseZerodhaOption(row, get, exchange, segment)
				if errors.Is(err, errSkipRow) {
					continue
				}
				if err != nil {
					return out, err
				}
				out.Options = append(out.Options, opt)
			}
		}
		// MCX, CDS, NCO: out of scope, skip
	}
	return out, nil
}

func parseZerodhaIndex(row []string, get func([]string, string) string, exchange model.Exchange, segment string) (IndexRow, error) {
	brokerSymbol := get(row, "tradingsymbol")
	canonical := brokerSymbol
	if c, ok := brokerToCanonical[brokerSymbol]; ok {
		canonical = c
	}
	return IndexRow{
		Exchange:     exchange,
		Symbol:       canonical,
		Name:         get(row, "name"),
		BrokerSymbol: brokerSymbol,
		Token:        get(row, "instrument_token"),
	}, nil
}

func parseZerodhaEquity(row []string, get func([]string, string) string, exchange model.Exchange) (EquityRow, error) {
	symbol := get(row, "tradingsymbol")
	lotSize, err := strconv.Atoi(get(row, "lot_size"))
	if err != nil {
		return EquityRow{}, fmt.Errorf("zerodha parser: equity %s: lot_size: %w", symbol, err)
	}
	tickSize, err := parseTickSize(get(row, "tick_size"))
	if err != nil {
		return EquityRow{}, fmt.Errorf("zerodha parser: equity %s: tick_size: %w", symbol, err)
	}
	return EquityRow{
		Exchange:     exchange,
		Symbol:       symbol,
		Name:         get(row, "name"),
		LotSize:      lotSize,
		TickSize:     tickSize,
		BrokerSymbol: symbol,
		Token:        get(row, "instrument_token"),
	}, nil
}

func parseZerodhaFuture(row []string, get func([]string, string) string, exchange model.Exchange, segment string) (FutureRow, error) {
	lotSize, err := strconv.Atoi(get(row, "lot_size"))
	if err != nil {
		return FutureRow{}, fmt.Errorf("zerodha parser: future: lot_size: %w", err)
	}
	tickSize, err := parseTickSize(get(row, "tick_size"))
	if err != nil {
		return FutureRow{}, fmt.Errorf("zerodha parser: future: tick_size: %w", err)
	}
	expiry, err := parseISODate(get(row, "expiry"))
	if err != nil {
		return FutureRow{}, fmt.Errorf("zerodha parser: future: expiry: %w", err)
	}
	return FutureRow{
		DerivativeExchange: exchange,
		UnderlyingExchange: underlyingExchange[exchange],
		Symbol:             get(row, "name"),
		Name:               get(row, "name"),
		Expiry:             expiry,
		LotSize:            lotSize,
		TickSize:           tickSize,
		BrokerSymbol:       get(row, "tradingsymbol"),
		Token:              get(row, "instrument_token"),
	}, nil
}

func parseZerodhaOption(row []string, get func([]string, string) string, exchange model.Exchange, segment string) (OptionRow, error) {
	lotSize, err := strconv.Atoi(get(row, "lot_size"))
	if err != nil {
		return OptionRow{}, fmt.Errorf("zerodha parser: option: lot_size: %w", err)
	}
	tickSize, err := parseTickSize(get(row, "tick_size"))
	if err != nil {
		return OptionRow{}, fmt.Errorf("zerodha parser: option: tick_size: %w", err)
	}
	strike, err := strconv.ParseFloat(get(row, "strike"), 64)
	if err != nil {
		return OptionRow{}, fmt.Errorf("zerodha parser: option: strike: %w", err)
	}
	if strike == 0 {
		return OptionRow{}, errSkipRow
	}
	expiry, err := parseISODate(get(row, "expiry"))
	if err != nil {
		return OptionRow{}, fmt.Errorf("zerodha parser: option: expiry: %w", err)
	}
	return OptionRow{
		DerivativeExchange: exchange,
		UnderlyingExchange: underlyingExchange[exchange],
		Symbol:             get(row, "name"),
		Name:               get(row, "name"),
		Expiry:             expiry,
		Strike:             strike,
		OptionType:         model.OptionType(get(row, "instrument_type")),
		LotSize:            lotSize,
		TickSize:           tickSize,
		BrokerSymbol:       get(row, "tradingsymbol"),
		Token:              get(row, "instrument_token"),
	}, nil
}

// parseTickSize reads the optional tick_size column; an absent or empty
// value yields 0.
func parseTickSize(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseISODate parses Vendor-A's YYYY-MM-DD expiry format.
func parseISODate(s string) (model.Date, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return model.Date{}, fmt.Errorf("invalid ISO date %q", s)
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return model.Date{}, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return model.Date{}, err
	}
	d, err := strconv.Atoi(parts[2])
	if err != nil {
		return model.Date{}, err
	}
	return model.Date{Year: y, Month: m, Day: d}, nil
}
