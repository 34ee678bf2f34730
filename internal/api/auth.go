package api

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/felixgeelhaar/vhub/internal/dispatch"
	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/identity"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string        `json:"token"`
	User  identity.User `json:"user"`
}

// Login exchanges email and password for a token and user record.
// A 400 or 401 answer is reported as InvalidCredentials; stored credentials are not touched.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := LoginRequest{
		Email:    email,
		Password: password,
	}

	resp, err := c.doRequest(dispatch.WithoutRecovery(ctx), http.MethodPost, "/auth/login", req)
	if err != nil {
		return nil, err
	}

	var loginResp LoginResponse
	if err := parseResponse(resp, &loginResp); err != nil {
		var se *StatusError
		if stderrors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusBadRequest) {
			return nil, errors.NewInvalidCredentialsError(se)
		}
		return nil, unexpected(err)
	}

	if loginResp.Token == "" {
		return nil, errors.NewUnexpectedStatusError(resp.StatusCode, "login response carried no token")
	}

	return &loginResp, nil
}

// Register creates a new account and returns the created record. No token is issued;
// the caller logs in separately.
func (c *Client) Register(ctx context.Context, fields map[string]any) (map[string]any, error) {
	resp, err := c.doRequest(dispatch.WithoutRecovery(ctx), http.MethodPost, "/auth/register", fields)
	if err != nil {
		return nil, err
	}

	created := map[string]any{}
	if err := parseResponse(resp, &created); err != nil {
		return nil, unexpected(err)
	}

	return created, nil
}
