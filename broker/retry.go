package broker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// retryDelays is the fixed backoff schedule: 1s, 2s, 4s between attempts.
// Combined with the initial attempt this gives a retry budget of 3.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// NewHTTPClient builds the *http.Client every adapter uses for REST calls:
// a 5s connect timeout, a 30s wait for response headers and a 30s overall
// request timeout. No separate write timeout is set.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// DoWithRetry executes the request buildRequest returns, retrying on
// transport errors and 5xx responses up to the fixed budget. 4xx and successful responses return
// immediately, unretried. buildRequest is called fresh for every attempt
// so a request body can be safely re-read.
func DoWithRetry(ctx context.Context, client *http.Client, log zerolog.Logger, buildRequest func(ctx context.Context) (*http.Request, error)) ([]byte, int, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		req, err := buildRequest(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("broker: build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt >= len(retryDelays) {
				return nil, 0, fmt.Errorf("broker: request failed after %d attempts: %w", attempt+1, lastErr)
			}
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("broker: transport error, retrying")
			if !sleep(ctx, retryDelays[attempt]) {
				return nil, 0, ctx.Err()
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("broker: read response body: %w", err)
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("broker: server error %d", resp.StatusCode)
			if attempt >= len(retryDelays) {
				return body, resp.StatusCode, lastErr
			}
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("broker: 5xx response, retrying")
			if !sleep(ctx, retryDelays[attempt]) {
				return nil, 0, ctx.Err()
			}
			continue
		}

		return body, resp.StatusCode, nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
