package backend

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

type credentialsKey struct{}

// Credentials carry the caller's tokens into backend calls. A refresh on 401
// updates the access token in place so the caller can hand it back.
type Credentials struct {
	mu        sync.Mutex
	access    string
	refresh   string
	refreshed bool
}

func NewCredentials(access, refresh string) *Credentials {
	return &Credentials{access: access, refresh: refresh}
}

func (c *Credentials) Access() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access
}

// Refreshed returns the new access token if a refresh happened.
func (c *Credentials) Refreshed() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access, c.refreshed
}

func (c *Credentials) refreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh
}

func (c *Credentials) update(access string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.access = access
	c.refreshed = true
}

func WithCredentials(ctx context.Context, creds *Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

func CredentialsFrom(ctx context.Context) *Credentials {
	creds, _ := ctx.Value(credentialsKey{}).(*Credentials)
	return creds
}

// Authenticated reports whether ctx carries an access token.
func Authenticated(ctx context.Context) bool {
	creds := CredentialsFrom(ctx)
	return creds != nil && creds.Access() != ""
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// refresh trades the refresh token for a new access token.
func (c *Client) refresh(ctx context.Context, creds *Credentials) error {
	var out refreshResponse
	_, err := c.roundTrip(ctx, http.MethodPost, "/auth/token/refresh/", refreshRequest{Refresh: creds.refreshToken()}, &out, nil)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if out.Access == "" {
		return fmt.Errorf("failed to refresh token: %w", ErrUnauthorized)
	}
	creds.update(out.Access)
	c.log.Debug("access token refreshed")
	return nil
}
