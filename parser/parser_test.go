package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjoelf/ttconnect-go/model"
)

func TestZerodhaParser_ClassifiesRows(t *testing.T) {
	csv := "instrument_token,exchange_token,tradingsymbol,name,expiry,strike,lot_size,instrument_type,segment,exchange\n" +
		"256265,1,NIFTY 50,,,0,0,0,INDICES,NSE\n" +
		"408065,1594,INFY,INFOSYS,,0,1,EQ,NSE,NSE\n" +
		"1000001,1,NIFTY26FEBFUT,NIFTY,2026-02-26,0,50,FUT,NFO-FUT,NFO\n" +
		"1000004,1,NIFTY26FEB23000CE,NIFTY,2026-02-26,23000,50,CE,NFO-OPT,NFO\n"

	out, err := ZerodhaParser{}.Parse([]byte(csv))
	require.NoError(t, err)

	require.Len(t, out.Indices, 1)
	require.Equal(t, "NIFTY", out.Indices[0].Symbol)
	require.Equal(t, "NIFTY 50", out.Indices[0].BrokerSymbol)
	require.Equal(t, "256265", out.Indices[0].Token)

	require.Len(t, out.Equities, 1)
	require.Equal(t, "INFY", out.Equities[0].Symbol)

	require.Len(t, out.Futures, 1)
	require.Equal(t, model.NSE, out.Futures[0].UnderlyingExchange)
	require.Equal(t, model.Date{Year: 2026, Month: 2, Day: 26}, out.Futures[0].Expiry)

	require.Len(t, out.Options, 1)
	require.Equal(t, 23000.0, out.Options[0].Strike)
	require.Equal(t, model.CE, out.Options[0].OptionType)
}

func TestZerodhaParser_RejectsZeroStrikeOptionRow(t *testing.T) {
	csv := "instrument_token,exchange_token,tradingsymbol,name,expiry,strike,lot_size,instrument_type,segment,exchange\n" +
		"1000004,1,NIFTY26FEB0CE,NIFTY,2026-02-26,0,50,CE,NFO-OPT,NFO\n"

	out, err := ZerodhaParser{}.Parse([]byte(csv))
	require.NoError(t, err)
	require.Empty(t, out.Options, "strike 0 option row must be silently dropped, not inserted")
}

func TestAngelOneParser_ClassifiesRows(t *testing.T) {
	raw := `[
		{"token":"99926000","symbol":"NIFTY","name":"NIFTY","expiry":"","strike":"-1.000000","lotsize":"1","instrumenttype":"AMXIDX","exch_seg":"NSE","tick_size":"0.000000"},
		{"token":"3045","symbol":"SBIN-EQ","name":"SBIN","expiry":"","strike":"-1.000000","lotsize":"1","instrumenttype":"","exch_seg":"NSE","tick_size":"5.000000"},
		{"token":"1000004","symbol":"NIFTY26FEB23000CE","name":"NIFTY","expiry":"26FEB2026","strike":"2300000.000000","lotsize":"50","instrumenttype":"OPTIDX","exch_seg":"NFO","tick_size":"5.000000"},
		{"token":"1000005","symbol":"SGBAUG28-SG","name":"SGBAUG28","expiry":"","strike":"-1.000000","lotsize":"1","instrumenttype":"","exch_seg":"NSE","tick_size":"1.000000"}
	]`

	out, err := AngelOneParser{}.Parse([]byte(raw))
	require.NoError(t, err)

	require.Len(t, out.Indices, 1)
	require.Equal(t, "NIFTY", out.Indices[0].Symbol)

	require.Len(t, out.Equities, 1, "SGB row must be excluded by suffix filter")
	require.Equal(t, "SBIN", out.Equities[0].Symbol)

	require.Len(t, out.Options, 1)
	require.Equal(t, 23000.0, out.Options[0].Strike)
	require.Equal(t, model.Date{Year: 2026, Month: 2, Day: 26}, out.Options[0].Expiry)
	require.Equal(t, model.CE, out.Options[0].OptionType)
}

func TestAngelOneParser_RejectsZeroStrikeOptionRow(t *testing.T) {
	raw := `[
		{"token":"1000004","symbol":"NIFTY26FEB0CE","name":"NIFTY","expiry":"26FEB2026","strike":"0.000000","lotsize":"50","instrumenttype":"OPTIDX","exch_seg":"NFO","tick_size":"5.000000"}
	]`

	out, err := AngelOneParser{}.Parse([]byte(raw))
	require.NoError(t, err)
	require.Empty(t, out.Options, "strike 0 option row must be silently dropped, not inserted")
}
