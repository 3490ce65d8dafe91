package zerodha

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/model"
)

func TestNormalizeStatus_KnownAndUnknown(t *testing.T) {
	require.Equal(t, model.StatusComplete, normalizeStatus("COMPLETE"))
	require.Equal(t, model.StatusOpen, normalizeStatus("MODIFY PENDING"))
	require.Equal(t, model.StatusOpen, normalizeStatus("CANCEL PENDING"))
	require.Equal(t, model.StatusPending, normalizeStatus("TRIGGER PENDING"))
	require.Equal(t, model.StatusPending, normalizeStatus("SOME FUTURE STATUS"))
}

func TestParseError_MapsKnownErrorTypes(t *testing.T) {
	tr := transformer{}

	body := []byte(`{"error_type":"TokenException","message":"session expired"}`)
	err := tr.ParseError(403, body)
	var authErr *brokererr.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	body = []byte(`{"error_type":"InputException","message":"bad quantity"}`)
	err = tr.ParseError(400, body)
	var invalidErr *brokererr.InvalidOrderError
	require.ErrorAs(t, err, &invalidErr)
}

func TestParseError_UnknownTypeFallsBackToBrokerError(t *testing.T) {
	tr := transformer{}
	body := []byte(`{"error_type":"SomeNewException","message":"surprise"}`)
	err := tr.ParseError(500, body)
	var brokerErr *brokererr.BrokerError
	require.ErrorAs(t, err, &brokerErr)
}

func TestToPosition_FiltersZeroQuantityNetRows(t *testing.T) {
	tr := transformer{}
	raw := map[string]any{
		"net": []any{
			map[string]any{"exchange": "NSE", "tradingsymbol": "INFY", "quantity": float64(0), "product": "CNC"},
			map[string]any{"exchange": "NSE", "tradingsymbol": "TCS", "quantity": float64(10), "product": "CNC", "average_price": 3500.0},
		},
		"day": []any{},
	}

	positions, err := tr.ToPosition(raw)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "TCS", positions[0].Instrument.Symbol)
	require.Equal(t, 10, positions[0].Quantity)
}

func TestToCloseParams_FlipsSideAndAbsQuantity(t *testing.T) {
	tr := transformer{}
	pos := model.Position{Instrument: model.NewEquity(model.NSE, "TCS"), Quantity: -5, Product: model.MIS}

	params := tr.ToCloseParams(pos)
	require.Equal(t, model.Buy, params.Side)
	require.Equal(t, 5, params.Quantity)
}

func TestToMargin_ComputesBenefitFromInitialAndFinalTotals(t *testing.T) {
	tr := transformer{}
	raw := map[string]any{
		"initial": map[string]any{"total": 100000.0, "span": 80000.0, "exposure": 20000.0, "option_premium": 0.0},
		"final":   map[string]any{"total": 70000.0},
	}

	m, err := tr.ToMargin(raw)
	require.NoError(t, err)
	require.Equal(t, 100000.0, m.Total)
	require.Equal(t, 80000.0, m.Span)
	require.Equal(t, 20000.0, m.Exposure)
	require.Equal(t, 70000.0, m.FinalTotal)
	require.Equal(t, 30000.0, m.Benefit)
}

func TestToOrderID_MissingFieldErrors(t *testing.T) {
	tr := transformer{}
	_, err := tr.ToOrderID(map[string]any{})
	require.Error(t, err)
}
