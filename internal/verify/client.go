// Package verify calls the external national-ID verification service. The
// verifier is an opaque collaborator: this core imposes no retry policy on
// it, and callers above own retry-on-failure UX.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is the verifier's answer for one identity pair.
type Result struct {
	Verified       bool   `json:"verified"`
	NormalizedName string `json:"normalizedName,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Client verifies an identity pair against the national registry.
type Client interface {
	Verify(ctx context.Context, idPrimary, idSecondary string) (Result, error)
}

// HTTPClient calls the verification service over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Verify(ctx context.Context, idPrimary, idSecondary string) (Result, error) {
	payload, err := json.Marshal(map[string]string{
		"idPrimary":   idPrimary,
		"idSecondary": idSecondary,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("verify call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("verify call: unexpected status %d", resp.StatusCode)
	}
	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode verify response: %w", err)
	}
	return result, nil
}

// MockClient answers deterministically with configurable latency, for local
// runs without registry access.
type MockClient struct {
	Latency time.Duration
}

func (c MockClient) Verify(_ context.Context, idPrimary, idSecondary string) (Result, error) {
	time.Sleep(c.Latency)
	if idPrimary == "" {
		return Result{Verified: false, Error: "missing national ID"}, nil
	}
	return Result{Verified: true, NormalizedName: idSecondary}, nil
}
