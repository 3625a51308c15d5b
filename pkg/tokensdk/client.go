package tokensdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the tokens service with a bearer credential.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	// Bearer is an accounts session JWT or an API token.
	Bearer string

	// Fingerprint is sent as X-Device-Fingerprint when set. API tokens bound
	// to a device fingerprint are rejected without it.
	Fingerprint string
}

// NewClient creates a client with a 10 second timeout.
func NewClient(baseURL, bearer string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Bearer: bearer,
	}
}

// WithBearer returns a copy of c presenting a different credential.
func (c *Client) WithBearer(bearer string) *Client {
	cp := *c
	cp.Bearer = bearer
	return &cp
}

// do performs a request. A nil in sends no body; a nil out discards the
// response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any, expectedStatus int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	if c.Fingerprint != "" {
		req.Header.Set("X-Device-Fingerprint", c.Fingerprint)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Read body once for both error parsing and success decoding
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, bodyBytes)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
