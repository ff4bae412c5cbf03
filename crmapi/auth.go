package crmapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// Auth endpoints consumed on the remote CRM API.
const (
	routeAuthLogin    = "/api/auth/login"
	routeAuthRegister = "/api/auth/register"
)

// Credentials are forwarded to the auth API untouched; format validation is
// the form's and the server's job.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// User is the profile block of a login response.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName,omitempty"`
	AvatarRef  string `json:"avatarRef,omitempty"`
}

// LoginResponse is the validated payload of a successful login.
type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Registration carries the signup fields. The client does not interpret
// them, it just forwards.
type Registration struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Country       string `json:"country"`
	CountryCode   string `json:"countryCode"`
	ContactNumber string `json:"contactNumber"`
	PromoCode     string `json:"promoCode,omitempty"`
	Role          string `json:"role"`
}

// Login authenticates against the auth API. A 2xx response that omits the
// tenant scope or the token is rejected with MalformedResponseErr - the HTTP
// call succeeded but the payload cannot be trusted.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, routeAuthLogin, creds, &resp); err != nil {
		return nil, err
	}
	if resp.User.TenantID == "" {
		return nil, errors.Wrap(MalformedResponseErr, "[Client.Login] user has no tenantId")
	}
	if resp.Token == "" {
		return nil, errors.Wrap(MalformedResponseErr, "[Client.Login] missing token")
	}
	return &resp, nil
}

// Register submits a registration and hands the raw success payload back for
// the caller to display. Registration does not establish a session.
func (c *Client) Register(ctx context.Context, reg Registration) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, routeAuthRegister, reg, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
