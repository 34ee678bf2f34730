package api

import (
	"context"
	"net/http"

	"github.com/felixgeelhaar/vhub/internal/identity"
)

// GetProfile retrieves the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*identity.User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/users/profile", nil)
	if err != nil {
		return nil, err
	}

	var user identity.User
	if err := parseResponse(resp, &user); err != nil {
		return nil, unexpected(err)
	}

	return &user, nil
}
