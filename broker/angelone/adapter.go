// Package angelone implements the broker.Adapter contract for Vendor-B
// (AngelOne SmartAPI): a MANUAL+AUTO REST client with TOTP-driven login,
// its JSON instrument-dump parser wiring, and the transformer that maps
// SmartAPI's payload shapes onto the canonical model.
package angelone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/config"
	"github.com/bjoelf/ttconnect-go/model"
	"github.com/bjoelf/ttconnect-go/parser"
	streamingangelone "github.com/bjoelf/ttconnect-go/streaming/angelone"
)

const baseURL = "https://apiconnect.angelbroking.com"

func init() {
	broker.Register(BrokerID, New)
}

type adapter struct {
	auth        *auth
	transformer transformer
	client      *http.Client
	log         zerolog.Logger
}

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

	// The extra SmartAPI headers (device identity, API key) are static
	// per adapter instance; only Authorization rotates with the session.
	// oauth2.Transport layers the rotating bearer token on top of a base
	// transport that injects the static ones — the same wrapping shape
	// the teacher uses for Saxo's OAuth2 client, generalized to a
	// TOTP-driven token source instead of an authorization-code one.
	base := &staticHeaderTransport{
		base: broker.NewHTTPClient().Transport,
		a:    a,
	}
	client := &http.Client{
		Timeout: broker.NewHTTPClient().Timeout,
		Transport: &oauth2.Transport{
			Base:   base,
			Source: &tokenSource{a: a},
		},
	}

	return &adapter{auth: a, client: client, log: zerolog.Nop()}, nil
}

// CreateStreamingClient builds the SmartStream client, satisfying
// broker.StreamingCapable. Only AngelOne implements this: Zerodha's Kite
// Connect has a separate, ticket-gated streaming product out of scope for
// this library.
func (a *adapter) CreateStreamingClient(ctx context.Context) (broker.StreamingClient, error) {
	credsFunc := func(ctx context.Context) (streamingangelone.Credentials, error) {
		if a.auth.isExpired() {
			if err := a.auth.refresh(ctx); err != nil {
				return streamingangelone.Credentials{}, err
			}
		}
		jwt, feedToken := a.auth.snapshot()
		return streamingangelone.Credentials{
			JWT:       jwt,
			APIKey:    a.auth.apiKey,
			ClientID:  a.auth.clientID,
			FeedToken: feedToken,
		}, nil
	}
	return streamingangelone.New(credsFunc, a.log), nil
}

var _ broker.StreamingCapable = (*adapter)(nil)

func (a *adapter) BrokerID() string                  { return BrokerID }
func (a *adapter) Capabilities() broker.Capabilities { return capabilities }

func (a *adapter) Login(ctx context.Context) error          { return a.auth.login(ctx) }
func (a *adapter) RefreshSession(ctx context.Context) error { return a.auth.refresh(ctx) }

func (a *adapter) FetchInstruments(ctx context.Context) (parser.ParsedInstruments, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://margincalculator.angelbroking.com/OpenAPI_File/files/OpenAPIScripMaster.json", nil)
	if err != nil {
		return parser.ParsedInstruments{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return parser.ParsedInstruments{}, fmt.Errorf("angelone: fetch instruments: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return parser.ParsedInstruments{}, err
	}
	return parser.AngelOneParser{}.Parse(body)
}

func (a *adapter) GetProfile(ctx context.Context) (model.Profile, error) {
	raw, err := a.get(ctx, baseURL+"/rest/auth/angelbroking/user/v1/getProfile")
	if err != nil {
		return model.Profile{}, err
	}
	return a.transformer.ToProfile(raw)
}

func (a *adapter) GetFunds(ctx context.Context) (model.Fund, error) {
	raw, err := a.get(ctx, baseURL+"/rest/auth/angelbroking/user/v1/getRMS")
	if err != nil {
		return model.Fund{}, err
	}
	return a.transformer.ToFund(raw)
}

func (a *adapter) GetHoldings(ctx context.Context) ([]model.Holding, error) {
	raw, err := a.get(ctx, baseURL+"/rest/auth/angelbroking/portfolio/v1/getHolding")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToHolding(normalizeNullList(raw))
}

func (a *adapter) GetPositions(ctx context.Context) ([]model.Position, error) {
	raw, err := a.get(ctx, baseURL+"/rest/auth/angelbroking/order/v1/getPosition")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToPosition(normalizeNullList(raw))
}

func (a *adapter) GetOrders(ctx context.Context) ([]model.Order, error) {
	raw, err := a.get(ctx, baseURL+"/rest/auth/angelbroking/order/v1/getOrderBook")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToOrder(normalizeNullList(raw))
}

func (a *adapter) GetTrades(ctx context.Context) ([]model.Trade, error) {
	raw, err := a.get(ctx, baseURL+"/rest/auth/angelbroking/order/v1/getTradeBook")
	if err != nil {
		return nil, err
	}
	return a.transformer.ToTrade(normalizeNullList(raw))
}

// GetOrder has no single-order endpoint on SmartAPI: filter the order book.
func (a *adapter) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	orders, err := a.GetOrders(ctx)
	if err != nil {
		return model.Order{}, err
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return model.Order{}, fmt.Errorf("angelone: order %s not found", orderID)
}

func (a *adapter) PlaceOrder(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (string, error) {
	body, err := a.transformer.ToOrderParams(params, resolved)
	if err != nil {
		return "", err
	}
	raw, err := a.post(ctx, baseURL+"/rest/auth/angelbroking/order/v1/placeOrder", body)
	if err != nil {
		return "", err
	}
	return a.transformer.ToOrderID(raw)
}

// GetMargin checks SmartAPI's margin calculator for the order in isolation.
func (a *adapter) GetMargin(ctx context.Context, resolved model.ResolvedInstrument, params model.OrderParams) (model.Margin, error) {
	body := map[string]any{
		"positions": []map[string]any{
			{
				"exchange":    resolved.Exchange,
				"qty":         params.Quantity,
				"price":       params.Price,
				"productType": string(params.Product),
				"token":       resolved.Token,
				"tradeType":   string(params.Side),
				"orderType":   string(params.OrderType),
			},
		},
	}
	raw, err := a.post(ctx, baseURL+"/rest/secure/angelbroking/margin/v1/getMargin", body)
	if err != nil {
		return model.Margin{}, err
	}
	figures, _ := raw.(map[string]any)
	return a.transformer.ToMargin(figures)
}

func (a *adapter) ModifyOrder(ctx context.Context, orderID string, params model.OrderParams) error {
	body := map[string]any{
		"orderid":      orderID,
		"quantity":     params.Quantity,
		"ordertype":    string(params.OrderType),
		"price":        params.Price,
		"triggerprice": params.TriggerPrice,
	}
	_, err := a.post(ctx, baseURL+"/rest/auth/angelbroking/order/v1/modifyOrder", body)
	return err
}

func (a *adapter) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{"orderid": orderID, "variety": "NORMAL"}
	_, err := a.post(ctx, baseURL+"/rest/auth/angelbroking/order/v1/cancelOrder", body)
	return err
}

func (a *adapter) get(ctx context.Context, endpoint string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return a.do(req)
}

func (a *adapter) post(ctx context.Context, endpoint string, payload any) (any, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	return a.do(req)
}

func (a *adapter) do(req *http.Request) (any, error) {
	body, status, err := broker.DoWithRetry(req.Context(), a.client, a.log, func(ctx context.Context) (*http.Request, error) {
		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attempt.Body = b
		}
		return attempt, nil
	})
	if err != nil {
		return nil, fmt.Errorf("angelone: request failed: %w", err)
	}
	if status >= 400 {
		return nil, a.transformer.ParseError(status, body)
	}

	var envelope struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    any    `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("angelone: decode response: %w", err)
	}
	if !envelope.Status {
		return nil, a.transformer.ParseError(status, body)
	}
	return envelope.Data, nil
}

// normalizeNullList folds SmartAPI's "data": null (the common empty-result
// shape for holdings/positions/orders) into an empty list, so downstream
// transformer list type assertions never see a bare nil.
func normalizeNullList(raw any) any {
	if raw == nil {
		return []any{}
	}
	return raw
}

// staticHeaderTransport injects the device-identity and API-key headers
// that never rotate with the session, ahead of oauth2.Transport layering
// in the current bearer token.
type staticHeaderTransport struct {
	base http.RoundTripper
	a    *auth
}

func (t *staticHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.a.staticHeaders("") {
		if k == "Authorization" {
			continue
		}
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}
