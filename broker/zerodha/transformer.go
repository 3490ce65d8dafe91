package zerodha

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/model"
)

// errorMap maps Vendor-A's error_type field onto the canonical taxonomy.
var errorMap = map[string]func(msg, code string) error{
	"TokenException":      func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"PermissionException": func(m, c string) error { return brokererr.NewAuthenticationError(m, c) },
	"OrderException":      func(m, c string) error { return brokererr.NewOrderError(m, c) },
	"InputException":      func(m, c string) error { return brokererr.NewInvalidOrderError(m, c) },
	"NetworkException":    func(m, c string) error { return brokererr.NewBrokerError(m, c) },
}

// statusMap folds Vendor-A's order statuses into the canonical five.
var statusMap = map[string]model.OrderStatus{
	"COMPLETE":                model.StatusComplete,
	"REJECTED":                model.StatusRejected,
	"CANCELLED":               model.StatusCancelled,
	"OPEN":                    model.StatusOpen,
	"MODIFY PENDING":          model.StatusOpen,
	"CANCEL PENDING":          model.StatusOpen,
	"TRIGGER PENDING":         model.StatusPending,
	"VALIDATION PENDING":      model.StatusPending,
	"OPEN PENDING":            model.StatusPending,
	"PUT ORDER REQ RECEIVED":  model.StatusPending,
	"AMO REQ RECEIVED":        model.StatusPending,
}

func normalizeStatus(vendorStatus string) model.OrderStatus {
	if s, ok := statusMap[vendorStatus]; ok {
		return s
	}
	return model.StatusPending
}

// transformer implements broker.Transformer for Vendor-A.
type transformer struct{}

func (transformer) ToOrderParams(p model.OrderParams, resolved model.ResolvedInstrument) (any, error) {
	params := map[string]any{
		"tradingsymbol":    resolved.BrokerSymbol,
		"exchange":         resolved.Exchange,
		"transaction_type": string(p.Side),
		"quantity":         p.Quantity,
		"product":          string(p.Product),
		"order_type":       string(p.OrderType),
	}
	if p.Price != 0 {
		params["price"] = p.Price
	}
	if p.TriggerPrice != 0 {
		params["trigger_price"] = p.TriggerPrice
	}
	return params, nil
}

func (transformer) ToOrderID(vendorResponse any) (string, error) {
	raw, ok := vendorResponse.(map[string]any)
	if !ok {
		return "", fmt.Errorf("zerodha transformer: unexpected order response type %T", vendorResponse)
	}
	id, _ := raw["order_id"].(string)
	if id == "" {
		return "", fmt.Errorf("zerodha transformer: missing order_id in response")
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
		return model.Profile{}, fmt.Errorf("zerodha transformer: unexpected profile response type %T", vendorResponse)
	}
	return model.Profile{
		ClientID: stringField(raw, "user_id"),
		Name:     stringField(raw, "user_name"),
		Email:    stringField(raw, "email"),
	}, nil
}

func (transformer) ToFund(vendorResponse any) (model.Fund, error) {
	raw, ok := vendorResponse.(map[string]any)
	if !ok {
		return model.Fund{}, fmt.Errorf("zerodha transformer: unexpected fund response type %T", vendorResponse)
	}
	equity, _ := raw["equity"].(map[string]any)
	available, _ := equity["available"].(map[string]any)
	utilised, _ := equity["utilised"].(map[string]any)
	return model.Fund{
		Currency:        "INR",
		AvailableCash:   floatField(available, "live_balance"),
		UsedMargin:      floatField(utilised, "debits"),
		AvailableMargin: floatField(equity, "net"),
	}, nil
}

func (transformer) ToHolding(vendorResponse any) ([]model.Holding, error) {
	rows, ok := vendorResponse.([]any)
	if !ok {
		return nil, fmt.Errorf("zerodha transformer: unexpected holdings response type %T", vendorResponse)
	}
	out := make([]model.Holding, 0, len(rows))
	for _, r := range rows {
		row, _ := r.(map[string]any)
		out = append(out, model.Holding{
			Instrument:   model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Quantity:     intField(row, "quantity"),
			AveragePrice: floatField(row, "average_price"),
			LastPrice:    floatField(row, "last_price"),
		})
	}
	return out, nil
}

// ToPosition exposes only non-zero "net" positions, per Vendor-A's
// {"net": [...], "day": [...]} envelope shape — "day" is intraday detail
// this library does not surface as a separate canonical record.
func (transformer) ToPosition(vendorResponse any) ([]model.Position, error) {
	envelope, ok := vendorResponse.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("zerodha transformer: unexpected positions response type %T", vendorResponse)
	}
	net, _ := envelope["net"].([]any)
	out := make([]model.Position, 0, len(net))
	for _, r := range net {
		row, _ := r.(map[string]any)
		qty := intField(row, "quantity")
		if qty == 0 {
			continue
		}
		product := row["product"]
		out = append(out, model.Position{
			Instrument:   model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Product:      model.ProductType(fmt.Sprintf("%v", product)),
			Quantity:     qty,
			AveragePrice: floatField(row, "average_price"),
			LastPrice:    floatField(row, "last_price"),
			PnL:          floatField(row, "pnl"),
		})
	}
	return out, nil
}

func (transformer) ToOrder(vendorResponse any) ([]model.Order, error) {
	rows, ok := vendorResponse.([]any)
	if !ok {
		return nil, fmt.Errorf("zerodha transformer: unexpected orders response type %T", vendorResponse)
	}
	out := make([]model.Order, 0, len(rows))
	for _, r := range rows {
		row, _ := r.(map[string]any)
		out = append(out, model.Order{
			OrderID:      stringField(row, "order_id"),
			Instrument:   model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Side:         model.Side(stringField(row, "transaction_type")),
			Quantity:     intField(row, "quantity"),
			FilledQty:    intField(row, "filled_quantity"),
			Price:        floatField(row, "price"),
			AveragePrice: floatField(row, "average_price"),
			OrderType:    model.OrderType(stringField(row, "order_type")),
			Product:      model.ProductType(stringField(row, "product")),
			Status:       normalizeStatus(stringField(row, "status")),
		})
	}
	return out, nil
}

func (transformer) ToTrade(vendorResponse any) ([]model.Trade, error) {
	rows, ok := vendorResponse.([]any)
	if !ok {
		return nil, fmt.Errorf("zerodha transformer: unexpected trades response type %T", vendorResponse)
	}
	out := make([]model.Trade, 0, len(rows))
	for _, r := range rows {
		row, _ := r.(map[string]any)
		out = append(out, model.Trade{
			TradeID:    stringField(row, "trade_id"),
			OrderID:    stringField(row, "order_id"),
			Instrument: model.NewEquity(model.Exchange(stringField(row, "exchange")), stringField(row, "tradingsymbol")),
			Side:       model.Side(stringField(row, "transaction_type")),
			Quantity:   intField(row, "quantity"),
			Price:      floatField(row, "average_price"),
		})
	}
	return out, nil
}

// ToMargin reads the {"initial": {...}, "final": {...}} shape GetMargin
// assembles around Kite's per-order margin figures: initial is the margin
// blocked for the order in isolation, final is what remains blocked once any
// netting against existing holdings/positions is applied. Benefit is the
// difference the netting earns.
func (transformer) ToMargin(vendorResponse any) (model.Margin, error) {
	raw, ok := vendorResponse.(map[string]any)
	if !ok {
		return model.Margin{}, fmt.Errorf("zerodha transformer: unexpected margin response type %T", vendorResponse)
	}
	initial, _ := raw["initial"].(map[string]any)
	final, _ := raw["final"].(map[string]any)
	total := floatField(initial, "total")
	finalTotal := floatField(final, "total")
	return model.Margin{
		Total:         total,
		Span:          floatField(initial, "span"),
		Exposure:      floatField(initial, "exposure"),
		OptionPremium: floatField(initial, "option_premium"),
		FinalTotal:    finalTotal,
		Benefit:       total - finalTotal,
	}, nil
}

func (transformer) ParseError(statusCode int, body []byte) error {
	var raw struct {
		ErrorType string `json:"error_type"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return brokererr.NewBrokerError(fmt.Sprintf("zerodha: unparseable error body, status %d", statusCode), "")
	}
	if raw.Message == "" {
		raw.Message = "unknown error"
	}
	ctor, ok := errorMap[raw.ErrorType]
	if !ok {
		return brokererr.NewBrokerError(raw.Message, raw.ErrorType)
	}
	return ctor(raw.Message, raw.ErrorType)
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
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}
