package client

import (
	"context"
	"net/http"

	"github.com/pilipi-dev/pilipi/internal/models"
)

// Auth endpoints, relative to the base URL
const (
	pathLogin          = "/auth/login/"
	pathRegister       = "/auth/register/"
	pathProfile        = "/auth/profile/"
	pathChangePassword = "/auth/change-password/"
	pathLogout         = "/auth/logout/"
)

// LoginResponse represents the login response
type LoginResponse struct {
	Access              string      `json:"access"`
	Token               string      `json:"token,omitempty"`
	Refresh             string      `json:"refresh,omitempty"`
	User                models.User `json:"user"`
	PasswordIsTemporary bool        `json:"password_is_temporary"`
	Message             string      `json:"message,omitempty"`
}

// BearerToken returns the issued access token. Older deployments answer
// with "token" instead of "access".
func (r *LoginResponse) BearerToken() string {
	if r.Access != "" {
		return r.Access
	}
	return r.Token
}

// Login exchanges credentials for a token and the caller's profile
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.Request(ctx, http.MethodPost, pathLogin, creds, &resp, WithoutCredentials()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. It does not issue a token.
func (c *Client) Register(ctx context.Context, reg models.Registration) error {
	return c.Request(ctx, http.MethodPost, pathRegister, reg, nil, WithoutCredentials())
}

// GetProfile returns the profile of the current credential's owner
func (c *Client) GetProfile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.Request(ctx, http.MethodGet, pathProfile, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial update and returns the updated profile
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var user models.User
	if err := c.Request(ctx, http.MethodPatch, pathProfile, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the caller's password
func (c *Client) ChangePassword(ctx context.Context, change models.PasswordChange) error {
	return c.Request(ctx, http.MethodPost, pathChangePassword, change, nil)
}

// Logout tells the backend the session is over. token is passed explicitly
// because the local credential is already gone by the time this is sent.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.Request(ctx, http.MethodPost, pathLogout, struct{}{}, nil, WithBearer(token))
}
