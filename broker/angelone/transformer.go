package angelone

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/model"
)

// errorPrefixMap folds Vendor-B's error-code prefixes onto the canonical
// taxonomy. Vendor-B has no single error_type field like Vendor-A; errors
// arrive as a short alphanumeric code that groups by prefix family.
var errorPrefixMap = map[string]func(msg, code string) error{
	"AG8001": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"AG8002": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"AG8003": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"AB8050": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"AB8051": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"AB1010": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"AB1011": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"AB1009": func(m, c string) error { return brokererr.NewInstrumentNotFoundError(m, c) },
	"AB1018": func(m, c string) error { return brokererr.NewInstrumentNotFoundError(m, c) },
	"AB1013": func(m, c string) error { return brokererr.NewOrderNotFoundError(m, c) },
	"AB1008": func(m, c string) error { return brokererr.NewInvalidOrderError(m, c) },
	"AB1012": func(m, c string) error { return brokererr.NewInvalidOrderError(m, c) },
	"AB4008": func(m, c string) error { return brokererr.NewInvalidOrderError(m, c) },
}

var statusMap = map[string]model.OrderStatus{
	"complete":           model.StatusComplete,
	"rejected":           model.StatusRejected,
	"cancelled":          model.StatusCancelled,
	"open":               model.StatusOpen,
	"trigger pending":    model.StatusPending,
	"pending":            model.StatusPending,
	"open pending":       model.StatusPending,
	"validation pending": model.StatusPending,
	"modify pending":     model.StatusOpen,
	"cancel pending":     model.StatusOpen,
	"after market order req received": model.StatusPending,
}

func normalizeStatus(vendorStatus string) model.OrderStatus {
	if s, ok := statusMap[strings.ToLower(vendorStatus)]; ok {
		return s
	}
	return model.StatusPending
}

type transformer struct{}

func (transformer) ToOrderParams(p model.OrderParams, resolved model.ResolvedInstrument) (any, error) {
	params := map[string]any{
		"tradingsymbol":   resolved.BrokerSymbol,
		"symboltoken":     resolved.Token,
		"exchange":        resolved.Exchange,
		"transactiontype": string(p.Side),
		"quantity":        strconv.Itoa(p.Quantity),
		"producttype":     string(p.Product),
		"ordertype":       string(p.OrderType),
		"duration":        "DAY",
		"price":           "0",
		"triggerprice":    "0",
	}
	if p.Price != 0 {
		params["price"] = strconv.FormatFloat(p.Price, 'f', 2, 64)
	}
	if p.TriggerPrice != 0 {
		params["triggerprice"] = strconv.FormatFloat(p.TriggerPrice, 'f', 2, 64)
	}
	return params, nil
}

func (transformer) ToOrderID(vendorResponse any) (string, error) {
	raw, ok := vendorResponse.(map[string]any)
	if !ok {
		return "", fmt.Errorf("angelone transformer: unexpected order response type %T", vendorResponse)
	}
	id, _ := raw["orderid"].(string)
	if id == "" {
		return "", fmt.Errorf("angelone transformer: missing orderid in response")
	}
	return id, nil
}

func (transformer) ToCloseParams(pos model.Position) model.CloseParams {
	side := model.Sell
	qty := pos.Quantity
	if pos.Quantity < 0 {
		side = model.Buy
		qty = -qty
	}
	return model.CloseParams{Instrument: pos.Instrument, Side: side, Quantity: qty, Product: pos.Product}
}

func (transformer) ToProfile(vendorResponse any) (model.Profile, error) {
	raw, ok := vendorResponse.(map[string]any)
	if !ok {
		return model.Profile{}, fmt.Errorf("angelone transformer: unexpected profile response type %T", vendorResponse)
	}
	return model.Profile{
		ClientID: stringField(raw, "clientcode"),
		Name:     stringField(raw, "name"),
		Email:    stringField(raw, "email"),
	}, nil
}

func (transformer) ToFund(vendorResponse any) (model.Fund, error) {
	raw, ok := vendorResponse.(map[string]any)
	if !ok {
		return model.Fund{}, fmt.Errorf("angelone transformer: unexpected fund response type %T", vendorResponse)
	}
	return model.Fund{
		Currency:        "INR",
		AvailableCash:   floatField(raw, "availablecash"),
		UsedMargin:      floatField(raw, "utiliseddebits"),
		AvailableMargin: floatField(raw, "net"),
	}, nil
}

func (transformer) ToHolding(vendorResponse any) ([]model.Holding, error) {
	rows, ok := vendorResponse.([]any)
	if !ok {
		return nil, fmt.Errorf("angelone transformer: unexpected holdings response type %T", vendorResponse)
	}
	out := make([]model.Holding, 0, len(rows))
	for _, r := range rows {
		row, _ := r.(map[string]any)
		out = append(out, model.Holding{
			Instrument:   model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Quantity:     intField(row, "quantity"),
			AveragePrice: floatField(row, "averageprice"),
			LastPrice:    floatField(row, "ltp"),
		})
	}
	return out, nil
}

func (transformer) ToPosition(vendorResponse any) ([]model.Position, error) {
	rows, ok := vendorResponse.([]any)
	if !ok {
		return nil, fmt.Errorf("angelone transformer: unexpected positions response type %T", vendorResponse)
	}
	out := make([]model.Position, 0, len(rows))
	for _, r := range rows {
		row, _ := r.(map[string]any)
		qty := intField(row, "netqty")
		if qty == 0 {
			continue
		}
		out = append(out, model.Position{
			Instrument:   model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Product:      model.ProductType(stringField(row, "producttype")),
			Quantity:     qty,
			AveragePrice: floatField(row, "avgnetprice"),
			LastPrice:    floatField(row, "ltp"),
			PnL:          floatField(row, "pnl"),
		})
	}
	return out, nil
}

func (transformer) ToOrder(vendorResponse any) ([]model.Order, error) {
	rows, ok := vendorResponse.([]any)
	if !ok {
		return nil, fmt.Errorf("angelone transformer: unexpected orders response type %T", vendorResponse)
	}
	out := make([]model.Order, 0, len(rows))
	for _, r := range rows {
		row, _ := r.(map[string]any)
		out = append(out, model.Order{
			OrderID:       stringField(row, "orderid"),
			Instrument:    model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Side:          model.Side(stringField(row, "transactiontype")),
			Quantity:      intField(row, "quantity"),
			FilledQty:     intField(row, "filledshares"),
			Price:         floatField(row, "price"),
			AveragePrice:  floatField(row, "averageprice"),
			OrderType:     model.OrderType(stringField(row, "ordertype")),
			Product:       model.ProductType(stringField(row, "producttype")),
			Status:        normalizeStatus(stringField(row, "status")),
			StatusMessage: stringField(row, "text"),
		})
	}
	return out, nil
}

func (transformer) ToTrade(vendorResponse any) ([]model.Trade, error) {
	rows, ok := vendorResponse.([]any)
	if !ok {
		return nil, fmt.Errorf("angelone transformer: unexpected trades response type %T", vendorResponse)
	}
	out := make([]model.Trade, 0, len(rows))
	for _, r := range rows {
		row, _ := r.(map[string]any)
		out = append(out, model.Trade{
			TradeID:    stringField(row, "fillid"),
			OrderID:    stringField(row, "orderid"),
			Instrument: model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Side:       model.Side(stringField(row, "transactiontype")),
			Quantity:   intField(row, "fillsize"),
			Price:      floatField(row, "fillprice"),
		})
	}
	return out, nil
}

// ToMargin reads SmartAPI's flat getMargin response. Vendor-B's
// margin-calculator has no before/after netting concept the way the
// originating margin-benefit contract this library adapts from expects —
// a standalone pre-trade check reports the same total before and after,
// so Benefit is always zero here.
func (transformer) ToMargin(vendorResponse any) (model.Margin, error) {
	raw, ok := vendorResponse.(map[string]any)
	if !ok {
		return model.Margin{}, fmt.Errorf("angelone transformer: unexpected margin response type %T", vendorResponse)
	}
	total := floatField(raw, "totalmarginrequired")
	return model.Margin{
		Total:         total,
		Span:          floatField(raw, "totalspanmargin"),
		Exposure:      floatField(raw, "totalexposuremargin"),
		OptionPremium: floatField(raw, "totaloptionpremium"),
		FinalTotal:    total,
		Benefit:       0,
	}, nil
}

func (transformer) ParseError(statusCode int, body []byte) error {
	var raw struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorcode"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return brokererr.NewBrokerError(fmt.Sprintf("angelone: unparseable error body, status %d", statusCode), "")
	}
	if raw.Message == "" {
		raw.Message = "unknown error"
	}
	ctor, ok := errorPrefixMap[raw.ErrorCode]
	if !ok {
		return brokererr.NewBrokerError(raw.Message, raw.ErrorCode)
	}
	return ctor(raw.Message, raw.ErrorCode)
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
