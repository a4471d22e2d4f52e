package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/k-weiss/tokenpool/internal/config"
)

// ErrAuthenticationFailed indicates the remote service rejected the login
// handshake or the handshake could not be completed.
var ErrAuthenticationFailed = errors.New("authentication failed")

// LoginResult is what a successful handshake yields.
type LoginResult struct {
	Token          string `json:"token"`
	ConversationID string `json:"conversation_id"`
}

// Client speaks the login/logout endpoints of the upstream session service.
type Client struct {
	http     *http.Client
	baseURL  string
	username string
	password string
}

func New(cfg config.RemoteConfig) *Client {
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout()},
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Ping verifies the remote service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Login performs the synchronous handshake and returns the issued token and
// the conversation id the service tied to it.
func (c *Client) Login(ctx context.Context) (*LoginResult, error) {
	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrAuthenticationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String()[:8])

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var er errorResponse
		json.NewDecoder(resp.Body).Decode(&er)
		if er.Message != "" {
			return nil, fmt.Errorf("%w: status %d: %s", ErrAuthenticationFailed, resp.StatusCode, er.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrAuthenticationFailed, err)
	}
	return &result, nil
}

// Logout tells the remote side the session is done. Callers treat this as
// best effort: the session is discarded locally whatever the outcome here.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Request-ID", uuid.New().String()[:8])

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// Logging out an already-dead session is fine.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusGone {
		return fmt.Errorf("remote logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}
