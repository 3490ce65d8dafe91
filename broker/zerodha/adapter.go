// Package zerodha implements the broker.Adapter contract for Vendor-A
// (Zerodha Kite Connect): a MANUAL-only REST client, its instrument-dump
// parser wiring, and the transformer that maps Kite's payload shapes onto
// the canonical model.
package zerodha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/config"
	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
)

const baseURL = "https://api.kite.trade"

func init() {
	broker.Register(BrokerID, New)
}

type adapter struct {
	auth        *auth
	transformer transformer
	client      *http.Client
	log         zerolog.Logger
}

// New constructs the Zerodha adapter. Registered into the broker package's
// constructor registry from init, the direct Go equivalent of the Python
// original's __init_subclass__ auto-registration.
func New(cfg config.Config) (broker.Adapter, error) {
	if err := capabilities.VerifyAuthMode(broker.AuthMode(cfg.AuthMode)); err != nil {
		return nil, err
	}
	store, err := broker.NewFileSessionStore(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	a, err := newAuth(cfg, store)
	if err != nil {
		return nil, err
	}
	return &adapter{
		auth:   a,
		client: broker.NewHTTPClient(),
		log:    zerolog.Nop(),
	}, nil
}

func (a *adapter) BrokerID() string             { return BrokerID }
func (a *adapter) Capabilities() broker.Capabilities { return capabilities }

func (a *adapter) Login(ctx context.Context) error          { return a.auth.login(ctx) }
func (a *adapter) RefreshSession(ctx context.Context) error { return a.auth.refresh(ctx) }

func (a *adapter) FetchInstruments(ctx context.Context) (parser.ParsedInstruments, error) {
	body, _, err := a.do(ctx, http.MethodGet, baseURL+"/instruments", nil)
	if err != nil {
		return parser.ParsedInstruments{}, err
	}
	return parser.ZerodhaParser{}.Parse(body)
}

func (a *adapter) GetProfile(ctx context.Context) (model.Profile, error) {
	raw, err := a.getJSON(ctx, baseURL+"/user/profile")
	if err != nil {
		return model.Profile{}, err
	}
	return a.transformer.ToProfile(raw)
}

func (a *adapter) GetFunds(ctx context.Context) (model.Fund, error) {
	raw, err := a.getJSON(ctx, baseURL+"/user/margins")
	if err != nil {
		return model.Fund{}, err
	}
	return a.transformer.ToFund(raw)
}

func (a *adapter) GetHoldings(ctx context.Context) ([]model.Holding, error) {
	raw, err := a.getJSONList(ctx, baseURL+"/portfolio/holdings")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToHolding(raw)
}

func (a *adapter) GetPositions(ctx context.Context) ([]model.Position, error) {
	raw, err := a.getJSON(ctx, baseURL+"/portfolio/positions")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToPosition(raw)
}

func (a *adapter) GetOrders(ctx context.Context) ([]model.Order, error) {
	raw, err := a.getJSONList(ctx, baseURL+"/orders")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToOrder(raw)
}

func (a *adapter) GetTrades(ctx context.Context) ([]model.Trade, error) {
	raw, err := a.getJSONList(ctx, baseURL+"/orders/trades")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToTrade(raw)
}

func (a *adapter) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	raw, err := a.getJSONList(ctx, baseURL+"/orders/"+url.PathEscape(orderID))
	if err != nil {
		return model.Order{}, err
	}
	orders, err := a.transformer.ToOrder(raw)
	if err != nil {
		return model.Order{}, err
	}
	if len(orders) == 0 {
		return model.Order{}, fmt.Errorf("zerodha: order %s not found", orderID)
	}
	// The history endpoint returns every update for the order; the latest
	// entry is the current state.
	return orders[len(orders)-1], nil
}

func (a *adapter) PlaceOrder(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (string, error) {
	orderParams, err := a.transformer.ToOrderParams(params, resolved)
	if err != nil {
		return "", err
	}
	form, ok := orderParams.(map[string]any)
	if !ok {
		return "", fmt.Errorf("zerodha: unexpected order params type %T", orderParams)
	}
	body, _, err := a.do(ctx, http.MethodPost, baseURL+"/orders/regular", form)
	if err != nil {
		return "", err
	}
	raw, err := decodeDataEnvelope(body)
	if err != nil {
		return "", err
	}
	return a.transformer.ToOrderID(raw)
}

// GetMargin checks Kite's per-order margin-calculator endpoint for the
// order in isolation. Kite's real response carries flat span/exposure/total
// fields with no notion of a pre-existing-position offset, so the figures
// are wrapped as both "initial" and "final" before reaching the
// transformer: with nothing to net against, Benefit comes out zero, which
// is the correct answer for a standalone pre-trade check.
func (a *adapter) GetMargin(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (model.Margin, error) {
	orderParams, err := a.transformer.ToOrderParams(params, resolved)
	if err != nil {
		return model.Margin{}, err
	}
	form, ok := orderParams.(map[string]any)
	if !ok {
		return model.Margin{}, fmt.Errorf("zerodha: unexpected order params type %T", orderParams)
	}
	payload, err := json.Marshal([]map[string]any{form})
	if err != nil {
		return model.Margin{}, err
	}
	headers, err := a.auth.headers()
	if err != nil {
		return model.Margin{}, err
	}
	body, status, err := broker.DoWithRetry(ctx, a.client, a.log, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/margins/orders", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return model.Margin{}, err
	}
	if status >= 400 {
		return model.Margin{}, a.transformer.ParseError(status, body)
	}
	data, err := decodeDataEnvelope(body)
	if err != nil {
		return model.Margin{}, err
	}
	figures, _ := data.(map[string]any)
	if list, ok := data.([]any); ok && len(list) > 0 {
		figures, _ = list[0].(map[string]any)
	}
	return a.transformer.ToMargin(map[string]any{"initial": figures, "final": figures})
}

func (a *adapter) ModifyOrder(ctx context.Context, orderID string, params model.OrderParams) error {
	form := map[string]any{
		"quantity":       params.Quantity,
		"order_type":     string(params.OrderType),
		"price":          params.Price,
		"trigger_price":  params.TriggerPrice,
	}
	_, _, err := a.do(ctx, http.MethodPut, baseURL+"/orders/regular/"+url.PathEscape(orderID), form)
	return err
}

func (a *adapter) CancelOrder(ctx context.Context, orderID string) error {
	_, _, err := a.do(ctx, http.MethodDelete, baseURL+"/orders/regular/"+url.PathEscape(orderID), nil)
	return err
}

func (a *adapter) getJSON(ctx context.Context, endpoint string) (any, error) {
	body, _, err := a.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeDataEnvelope(body)
}

func (a *adapter) getJSONList(ctx context.Context, endpoint string) (any, error) {
	return a.getJSON(ctx, endpoint)
}

// do issues one Kite Connect request with auth headers, retrying per the
// shared broker retry policy, and translates non-2xx bodies through the
// vendor transformer's error mapping.
func (a *adapter) do(ctx context.Context, method, endpoint string, form map[string]any) ([]byte, int, error) {
	headers, err := a.auth.headers()
	if err != nil {
		return nil, 0, err
	}

	body, status, err := broker.DoWithRetry(ctx, a.client, a.log, func(ctx context.Context) (*http.Request, error) {
		var req *http.Request
		var reqErr error
		if form != nil {
			req, reqErr = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encodeForm(form)))
			if reqErr == nil {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
		} else {
			req, reqErr = http.NewRequestWithContext(ctx, method, endpoint, nil)
		}
		if reqErr != nil {
			return nil, reqErr
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return nil, status, err
	}
	if status >= 400 {
		return nil, status, a.transformer.ParseError(status, body)
	}
	return body, status, nil
}

func encodeForm(form map[string]any) string {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, fmt.Sprintf("%v", v))
	}
	return values.Encode()
}

// decodeDataEnvelope unwraps Kite's {"status": "success", "data": ...}
// response envelope, returning the data payload as the bare any value the
// transformer expects.
func decodeDataEnvelope(body []byte) (any, error) {
	var envelope struct {
		Status string `json:"status"`
		Data   any    `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("zerodha: decode response: %w", err)
	}
	return envelope.Data, nil
}
