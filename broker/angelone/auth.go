package angelone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/oauth2"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/brokererr"
	"github.com/bjoelf/ttconnect-go/config"
)

const (
	loginURL  = "https://apiconnect.angelbroking.com/rest/auth/angelbroking/user/v1/loginByPassword"
	renewURL  = "https://apiconnect.angelbroking.com/rest/auth/angelbroking/user/v1/renewToken"
	macPlaceholder = "00:00:00:00:00:00"
	// publicIPPlaceholder mirrors the Python original: SmartAPI accepts a
	// static placeholder when the caller's real public IP isn't known.
	publicIPPlaceholder = "106.193.147.210"
)

// auth drives Vendor-B's session lifecycle for both auth modes: MANUAL
// adopts the pre-obtained access token from the config as the jwt; AUTO
// exchanges client id + pin + TOTP code for one via loginByPassword.
type auth struct {
	mode       broker.AuthMode
	clientID   string
	pin        string
	totpSecret string
	apiKey     string
	store      broker.SessionStore
	httpClient *http.Client
	localIP    string

	mu           sync.RWMutex
	jwtToken     string
	refreshToken string
	feedToken    string
}

func newAuth(cfg config.Config, store broker.SessionStore) (*auth, error) {
	mode := broker.AuthMode(cfg.AuthMode)
	a := &auth{
		mode:       mode,
		clientID:   cfg.ClientID,
		pin:        cfg.PIN,
		totpSecret: cfg.TOTPSecret,
		apiKey:     cfg.APIKey,
		store:      store,
		httpClient: broker.NewHTTPClient(),
		localIP:    localOutboundIP(),
	}

	switch mode {
	case broker.AuthManual:
		if cfg.AccessToken == "" {
			return nil, fmt.Errorf("angelone: access_token is required in MANUAL mode")
		}
	case broker.AuthAuto:
		if a.clientID == "" || a.pin == "" || a.totpSecret == "" || a.apiKey == "" {
			return nil, fmt.Errorf("angelone: client_id, pin, totp_secret and api_key are required in AUTO mode")
		}
	default:
		return nil, fmt.Errorf("angelone: unsupported auth mode %q", cfg.AuthMode)
	}

	if mode == broker.AuthManual {
		a.jwtToken = cfg.AccessToken
	}
	return a, nil
}

func (a *auth) login(ctx context.Context) error {
	if cached, ok, err := a.store.Load(BrokerID); err == nil && ok && !cached.IsExpired() {
		a.mu.Lock()
		a.jwtToken = cached.AccessToken
		a.refreshToken = cached.RefreshToken
		a.feedToken = cached.FeedToken
		a.mu.Unlock()
		return nil
	}

	if a.mode == broker.AuthManual {
		return a.saveSession()
	}
	return a.loginAuto(ctx)
}

func (a *auth) loginAuto(ctx context.Context) error {
	code, err := totp.GenerateCode(a.totpSecret, time.Now())
	if err != nil {
		return brokererr.NewAuthenticationError(fmt.Sprintf("angelone: generate TOTP: %v", err), "")
	}

	payload := map[string]string{
		"clientcode": a.clientID,
		"password":   a.pin,
		"totp":       code,
	}
	var result loginResponse
	if err := a.post(ctx, loginURL, a.staticHeaders(""), payload, &result); err != nil {
		return err
	}
	if !result.Status || result.Data == nil {
		return brokererr.NewAuthenticationError(fmt.Sprintf("angelone: login failed: %s", result.Message), "")
	}

	a.mu.Lock()
	a.jwtToken = result.Data.JWTToken
	a.refreshToken = result.Data.RefreshToken
	a.feedToken = result.Data.FeedToken
	a.mu.Unlock()

	return a.saveSession()
}

func (a *auth) refresh(ctx context.Context) error {
	a.mu.RLock()
	refreshToken := a.refreshToken
	jwt := a.jwtToken
	a.mu.RUnlock()

	if a.mode == broker.AuthManual || refreshToken == "" {
		return a.login(ctx)
	}

	payload := map[string]string{"refreshToken": refreshToken}
	var result loginResponse
	err := a.post(ctx, renewURL, a.staticHeaders(jwt), payload, &result)
	if err != nil || !result.Status || result.Data == nil {
		return a.login(ctx)
	}

	a.mu.Lock()
	a.jwtToken = result.Data.JWTToken
	a.refreshToken = result.Data.RefreshToken
	a.feedToken = result.Data.FeedToken
	a.mu.Unlock()

	return a.saveSession()
}

func (a *auth) saveSession() error {
	a.mu.RLock()
	session := broker.SessionData{
		AccessToken:  a.jwtToken,
		RefreshToken: a.refreshToken,
		FeedToken:    a.feedToken,
		ObtainedAt:   time.Now(),
		ExpiresAt:    broker.NextMidnightIST(time.Now()),
	}
	a.mu.RUnlock()
	return a.store.Save(BrokerID, session)
}

func (a *auth) isExpired() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.jwtToken == ""
}

// snapshot returns the live jwt/feed token pair, for the streaming client
// to build a fresh connect header on every (re)connect.
func (a *auth) snapshot() (jwt, feedToken string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.jwtToken, a.feedToken
}

// headers builds a fresh header map for one request, mirroring the Python
// original's per-call header property. A new map every call, so one
// goroutine's mutation never leaks into another's in-flight request.
func (a *auth) headers() (map[string]string, error) {
	a.mu.RLock()
	jwt := a.jwtToken
	a.mu.RUnlock()
	if jwt == "" {
		return nil, brokererr.NewAuthenticationError("angelone: not authenticated", "")
	}
	h := a.staticHeaders(jwt)
	h["Authorization"] = "Bearer " + jwt
	return h, nil
}

func (a *auth) staticHeaders(jwt string) map[string]string {
	h := map[string]string{
		"Content-Type":     "application/json",
		"Accept":           "application/json",
		"X-UserType":       "USER",
		"X-SourceID":       "WEB",
		"X-ClientLocalIP":  a.localIP,
		"X-ClientPublicIP": publicIPPlaceholder,
		"X-MACAddress":     macPlaceholder,
		"X-PrivateKey":     a.apiKey,
	}
	if jwt != "" {
		h["Authorization"] = "Bearer " + jwt
	}
	return h
}

func (a *auth) post(ctx context.Context, url string, headers map[string]string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return brokererr.NewAuthenticationError(fmt.Sprintf("angelone: connection error: %v", err), "")
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

type loginResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		JWTToken     string `json:"jwtToken"`
		RefreshToken string `json:"refreshToken"`
		FeedToken    string `json:"feedToken"`
	} `json:"data"`
}

func localOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// tokenSource adapts auth onto oauth2.TokenSource, letting the adapter
// build its HTTP client with the same wrapping pattern the teacher uses
// for Saxo's OAuth2 flow, even though Vendor-B's token lifecycle is
// TOTP/PIN-driven rather than authorization-code based: the shape — a
// transport that transparently attaches the current bearer token — is
// identical.
type tokenSource struct {
	a *auth
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.a.mu.RLock()
	jwt := s.a.jwtToken
	s.a.mu.RUnlock()
	if jwt == "" {
		return nil, brokererr.NewAuthenticationError("angelone: not authenticated", "")
	}
	return &oauth2.Token{AccessToken: jwt, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*tokenSource)(nil)
