package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bjoelf/ttconnect-go/model"
)

// equitySuffixExclusions are tradingsymbol suffixes that look like plain
// equities (empty instrumenttype) but are not: government securities,
// mutual funds, SGBs, SMEs, illiquid/block/corporate-bond/T-bill series.
var equitySuffixExclusions = []string{
	"-GS", "-MF", "-SG", "-SM", "-IL", "-BL", "-CB", "-TB",
}

var monthAbbrev = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

type angelOneRawRow struct {
	Token          string `json:"token"`
	Symbol         string `json:"symbol"`
	Name           string `json:"name"`
	Expiry         string `json:"expiry"`
	Strike         string `json:"strike"`
	LotSize        string `json:"lotsize"`
	InstrumentType string `json:"instrumenttype"`
	ExchSeg        string `json:"exch_seg"`
	TickSize       string `json:"tick_size"`
}

// AngelOneParser parses Vendor-B's JSON instrument dump.
type AngelOneParser struct{}

func (AngelOneParser) Parse(raw []byte) (ParsedInstruments, error) {
	var out ParsedInstruments

	var rows []angelOneRawRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return out, fmt.Errorf("angelone parser: decode json: %w", err)
	}

	for _, row := range rows {
		exchange := model.Exchange(row.ExchSeg)
		switch exchange {
		case model.NSE, model.BSE:
			switch {
			case row.InstrumentType == "AMXIDX":
				idx, err := parseAngelOneIndex(row, exchange)
				if err != nil {
					return out, err
				}
				out.Indices = append(out.Indices, idx)
			case row.InstrumentType == "" && !hasExcludedSuffix(row.Symbol):
				eq, err := parseAngelOneEquity(row, exchange)
				if err != nil {
					return out, err
				}
				out.Equities = append(out.Equities, eq)
			}
		case model.NFO, model.BFO:
			switch row.InstrumentType {
			case "FUTIDX", "FUTSTK":
				fut, err := parseAngelOneFuture(row, exchange)
				if err != nil {
					return out, err
				}
				out.Futures = append(out.Futures, fut)
			case "OPTIDX", "OPTSTK":
				opt, err := parseAngelOneOption(row, exchange)
				if errors.Is(err, errSkipRow) {
					continue
				}
				if err != nil {
					return out, err
				}
				out.Options = append(out.Options, opt)
			}
		}
		// MCX, CDS: out of scope, skip
	}
	return out, nil
}

func hasExcludedSuffix(symbol string) bool {
	for _, suf := range equitySuffixExclusions {
		if strings.HasSuffix(symbol, suf) {
			return true
		}
	}
	return false
}

func parseAngelOneIndex(row angelOneRawRow, exchange model.Exchange) (IndexRow, error) {
	canonical := row.Name
	if c, ok := brokerToCanonical[row.Name]; ok {
		canonical = c
	}
	return IndexRow{
		Exchange:     exchange,
		Symbol:       canonical,
		Name:         row.Name,
		BrokerSymbol: row.Symbol,
		Token:        row.Token,
	}, nil
}

func parseAngelOneEquity(row angelOneRawRow, exchange model.Exchange) (EquityRow, error) {
	canonical := strings.TrimSuffix(row.Symbol, "-EQ")
	lotSize, tickSize, err := parseAngelOneNumerics(row)
	if err != nil {
		return EquityRow{}, fmt.Errorf("angelone parser: equity %s: %w", row.Symbol, err)
	}
	return EquityRow{
		Exchange:     exchange,
		Symbol:       canonical,
		Name:         row.Name,
		LotSize:      lotSize,
		TickSize:     tickSize,
		BrokerSymbol: row.Symbol,
		Token:        row.Token,
	}, nil
}

func parseAngelOneFuture(row angelOneRawRow, exchange model.Exchange) (FutureRow, error) {
	lotSize, tickSize, err := parseAngelOneNumerics(row)
	if err != nil {
		return FutureRow{}, fmt.Errorf("angelone parser: future %s: %w", row.Symbol, err)
	}
	expiry, err := parseDDMMMYYYY(row.Expiry)
	if err != nil {
		return FutureRow{}, fmt.Errorf("angelone parser: future %s: expiry: %w", row.Symbol, err)
	}
	return FutureRow{
		DerivativeExchange: exchange,
		UnderlyingExchange: underlyingExchange[exchange],
		Symbol:             row.Name,
		Name:               row.Name,
		Expiry:             expiry,
		LotSize:            lotSize,
		TickSize:           tickSize,
		BrokerSymbol:       row.Symbol,
		Token:              row.Token,
	}, nil
}

func parseAngelOneOption(row angelOneRawRow, exchange model.Exchange) (OptionRow, error) {
	lotSize, tickSize, err := parseAngelOneNumerics(row)
	if err != nil {
		return OptionRow{}, fmt.Errorf("angelone parser: option %s: %w", row.Symbol, err)
	}
	expiry, err := parseDDMMMYYYY(row.Expiry)
	if err != nil {
		return OptionRow{}, fmt.Errorf("angelone parser: option %s: expiry: %w", row.Symbol, err)
	}
	strikePaise, err := strconv.ParseFloat(row.Strike, 64)
	if err != nil {
		return OptionRow{}, fmt.Errorf("angelone parser: option %s: strike: %w", row.Symbol, err)
	}
	if strikePaise == 0 {
		return OptionRow{}, errSkipRow
	}
	optType := model.CE
	if strings.HasSuffix(row.Symbol, "PE") {
		optType = model.PE
	}
	return OptionRow{
		DerivativeExchange: exchange,
		UnderlyingExchange: underlyingExchange[exchange],
		Symbol:             row.Name,
		Name:               row.Name,
		Expiry:             expiry,
		Strike:             strikePaise / 100.0,
		OptionType:         optType,
		LotSize:            lotSize,
		TickSize:           tickSize,
		BrokerSymbol:       row.Symbol,
		Token:              row.Token,
	}, nil
}

func parseAngelOneNumerics(row angelOneRawRow) (lotSize int, tickSize float64, err error) {
	lotSize, err = strconv.Atoi(row.LotSize)
	if err != nil {
		return 0, 0, fmt.Errorf("lotsize: %w", err)
	}
	tickSizePaise, err := strconv.ParseFloat(row.TickSize, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("tick_size: %w", err)
	}
	return lotSize, tickSizePaise / 100.0, nil
}

// parseDDMMMYYYY parses Vendor-B's "26FEB2026"-shaped expiry strings.
func parseDDMMMYYYY(s string) (model.Date, error) {
	if len(s) != 9 {
		return model.Date{}, fmt.Errorf("invalid expiry %q: want DDMMMYYYY", s)
	}
	day, err := strconv.Atoi(s[0:2])
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid expiry %q: day: %w", s, err)
	}
	month, ok := monthAbbrev[strings.ToUpper(s[2:5])]
	if !ok {
		return model.Date{}, fmt.Errorf("invalid expiry %q: unknown month", s)
	}
	year, err := strconv.Atoi(s[5:9])
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid expiry %q: year: %w", s, err)
	}
	return model.Date{Year: year, Month: month, Day: day}, nil
}
