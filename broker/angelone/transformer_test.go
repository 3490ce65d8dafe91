package angelone

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/model"
)

func TestNormalizeStatus_IsCaseInsensitive(t *testing.T) {
	require.Equal(t, model.StatusComplete, normalizeStatus("complete"))
	require.Equal(t, model.StatusComplete, normalizeStatus("COMPLETE"))
	require.Equal(t, model.StatusOpen, normalizeStatus("Modify Pending"))
	require.Equal(t, model.StatusOpen, normalizeStatus("Cancel Pending"))
	require.Equal(t, model.StatusPending, normalizeStatus("something else entirely"))
}

func TestParseError_MapsPrefixedCodes(t *testing.T) {
	tr := transformer{}

	body := []byte(`{"message":"invalid session","errorcode":"AG8001"}`)
	err := tr.ParseError(403, body)
	var authErr *brokererr.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	body = []byte(`{"message":"order not found","errorcode":"AB1013"}`)
	err = tr.ParseError(404, body)
	var notFoundErr *brokererr.OrderNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestParseError_UnknownCodeFallsBackToBrokerError(t *testing.T) {
	tr := transformer{}
	body := []byte(`{"message":"surprise","errorcode":"ZZ9999"}`)
	err := tr.ParseError(500, body)
	var brokerErr *brokererr.BrokerError
	require.ErrorAs(t, err, &brokerErr)
}

func TestToPosition_FiltersZeroNetQty(t *testing.T) {
	tr := transformer{}
	rows := []any{
		map[string]any{"exchange": "NSE", "tradingsymbol": "SBIN-EQ", "netqty": "0", "producttype": "MIS"},
		map[string]any{"exchange": "NSE", "tradingsymbol": "RELIANCE-EQ", "netqty": "5", "producttype": "MIS", "avgnetprice": "2900.5"},
	}
	positions, err := tr.ToPosition(rows)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "RELIANCE-EQ", positions[0].Instrument.Symbol)
}

func TestToMargin_ReportsZeroBenefitForStandaloneCheck(t *testing.T) {
	tr := transformer{}
	raw := map[string]any{
		"totalmarginrequired": 45000.0,
		"totalspanmargin":     36000.0,
		"totalexposuremargin": 9000.0,
		"totaloptionpremium":  0.0,
	}

	m, err := tr.ToMargin(raw)
	require.NoError(t, err)
	require.Equal(t, 45000.0, m.Total)
	require.Equal(t, 36000.0, m.Span)
	require.Equal(t, 9000.0, m.Exposure)
	require.Equal(t, 45000.0, m.FinalTotal)
	require.Equal(t, 0.0, m.Benefit)
}

func TestToOrderParams_FormatsQuantityAndPriceAsStrings(t *testing.T) {
	tr := transformer{}
	resolved := model.ResolvedInstrument{Token: "3045", BrokerSymbol: "SBIN-EQ", Exchange: "NSE"}
	params := model.OrderParams{
		Instrument: model.NewEquity(model.NSE, "SBIN"),
		Side:       model.Buy,
		Quantity:   10,
		Price:      412.5,
		OrderType:  model.Limit,
		Product:    model.MIS,
	}

	out, err := tr.ToOrderParams(params, resolved)
	require.NoError(t, err)
	body, ok := out.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "10", body["quantity"])
	require.Equal(t, "412.50", body["price"])
	require.Equal(t, "3045", body["symboltoken"])
}
