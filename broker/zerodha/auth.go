package zerodha

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/config"
)

// auth implements the MANUAL-only session state machine: the caller
// supplies a pre-obtained access token; there is no credential exchange to
// perform. login/refresh both just adopt whatever the cache or config
// currently holds — mirroring the Python original's ZerodhaAuth, which
// never implements a KiteConnect request-token exchange.
type auth struct {
	apiKey string
	token  string
	store  broker.SessionStore

	mu      sync.RWMutex
	session broker.SessionData
}

func newAuth(cfg config.Config, store broker.SessionStore) (*auth, error) {
	if broker.AuthMode(cfg.AuthMode) != broker.AuthManual {
		return nil, brokererr.NewUnsupportedFeatureError("zerodha: only MANUAL auth mode is supported")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("zerodha: access_token is required in MANUAL mode")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("zerodha: api_key is required")
	}
	return &auth{apiKey: cfg.APIKey, token: cfg.AccessToken, store: store}, nil
}

func (a *auth) login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cached, ok, err := a.store.Load(BrokerID); err == nil && ok && !cached.IsExpired() {
		a.session = cached
		return nil
	}

	now := time.Now()
	a.session = broker.SessionData{
		AccessToken: a.token,
		ObtainedAt:  now,
		ExpiresAt:   broker.NextMidnightIST(now),
	}
	return a.store.Save(BrokerID, a.session)
}

// refresh re-adopts the configured token: in MANUAL mode the caller is
// responsible for obtaining a fresh token externally and updating Config,
// so refresh behaves identically to login.
func (a *auth) refresh(ctx context.Context) error {
	return a.login(ctx)
}

func (a *auth) isExpired() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.IsExpired()
}

// headers builds a fresh header map for one request. A new map is
// returned every call — sharing one map across concurrent requests would
// let one goroutine's header mutation leak into another's in-flight
// request.
func (a *auth) headers() (map[string]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.session.AccessToken == "" {
		return nil, brokererr.NewAuthenticationError("zerodha: not authenticated", "")
	}
	return map[string]string{
		"X-Kite-Version": "3",
		"Authorization":  fmt.Sprintf("token %s:%s", a.apiKey, a.session.AccessToken),
	}, nil
}
