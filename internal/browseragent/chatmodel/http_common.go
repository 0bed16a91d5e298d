package chatmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"browseragent/internal/browseragent/bgerr"
)

// rateLimiter enforces a minimum gap between requests, the same
// single-mutex-plus-lastRequest-timestamp pattern the teacher's provider
// clients use (internal/perception/client.go's ZAIClient/OpenAIClient).
type rateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elapsed := time.Since(r.last); elapsed < r.minInterval {
		select {
		case <-time.After(r.minInterval - elapsed):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.last = time.Now()
	return nil
}

const maxRetries = 3

// postJSONWithRetry posts body to url with the given headers, making at
// most maxRetries attempts in total; HTTP 429 and transport/read errors are
// retried with exponential backoff (1<<(attempt-1) seconds: 1s, then 2s),
// following the teacher's retry ladder in internal/perception/client.go
// and client_tool_helpers.go.
func postJSONWithRetry(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, bgerr.Wrap(bgerr.ModelFormat, err, "failed to marshal request body")
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, bgerr.Wrap(bgerr.RequestCancelled, ctx.Err(), "cancelled during backoff")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, bgerr.Wrap(bgerr.ModelFormat, err, "failed to build request")
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, bgerr.Wrap(bgerr.RequestCancelled, ctx.Err(), "request cancelled")
			}
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (status 429)")
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, bgerr.New(bgerr.ModelAuth, "model endpoint rejected credentials", map[string]any{"status": resp.StatusCode})
		case resp.StatusCode == http.StatusForbidden:
			return nil, bgerr.New(bgerr.ModelForbidden, "model endpoint denied request", map[string]any{"status": resp.StatusCode})
		case resp.StatusCode >= 400:
			return nil, bgerr.New(bgerr.ModelFormat, fmt.Sprintf("model endpoint error (status %d)", resp.StatusCode), map[string]any{
				"status": resp.StatusCode,
				"body":   string(respBody),
			})
		}

		return respBody, nil
	}

	return nil, bgerr.Wrap(bgerr.ModelFormat, lastErr, "exhausted retries")
}
