// Package api is the Volunteer Hub backend client.
//
// Every call goes through an *http.Client whose transport is a dispatch.Dispatcher, so
// credentials are attached and authorization failures recovered in one place. The
// client itself never holds a token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/version"
)

// DefaultBaseURL is the hosted Volunteer Hub API.
const DefaultBaseURL = "https://api-volunteer-opportunity-hub-backend.onrender.com/api"

// Client is the Volunteer Hub API client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new API client. httpClient should route through a dispatch.Dispatcher;
// nil falls back to a plain client with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

// doRequest performs a JSON request against BaseURL+path
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Surface the dispatcher's coded error instead of the *url.Error wrapper.
		var vErr *errors.VhubError
		if stderrors.As(err, &vErr) {
			return nil, vErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewTransportUnreachableError(c.BaseURL, err)
	}

	return resp, nil
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Detail)
}

// parseResponse parses the response body into the target struct.
// Non-2xx responses become *StatusError.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

		// Try to parse as JSON error response
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			if errResp.Error != "" {
				return &StatusError{StatusCode: resp.StatusCode, Detail: errResp.Error}
			}
			if errResp.Message != "" {
				return &StatusError{StatusCode: resp.StatusCode, Detail: errResp.Message}
			}
		}

		// Fallback to raw body
		return &StatusError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(body))}
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return errors.Wrap(errors.ErrCodeUnexpectedStatus, "failed to decode response", err)
		}
	}

	return nil
}

// unexpected converts a *StatusError into the coded error callers see.
func unexpected(err error) error {
	var se *StatusError
	if stderrors.As(err, &se) {
		return errors.NewUnexpectedStatusError(se.StatusCode, se.Detail)
	}
	return err
}
