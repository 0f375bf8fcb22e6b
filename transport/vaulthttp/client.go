// Package vaulthttp implements transport.Client over JSON HTTP against a
// vault server's /v1/session endpoints.
package vaulthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/keywarden/transport"
)

const defaultTimeout = 30 * time.Second

// Client talks to a vault server's session endpoints. The Server field of
// each Endpoint is interpreted as the base URL scheme://host[:port].
type Client struct {
	httpClient *http.Client
}

var _ transport.Client = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client, e.g. to install a
// custom TLS configuration or a test transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a vaulthttp Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionEnvelope struct {
	User      string `json:"user"`
	SessionID string `json:"session_id,omitempty"`
	Solution  string `json:"solution,omitempty"`
}

func (c *Client) RequestSession(ctx context.Context, ep transport.Endpoint) (*transport.SessionReply, error) {
	var reply transport.SessionReply
	if err := c.post(ctx, ep, "request", sessionEnvelope{User: ep.User}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) OpenSession(ctx context.Context, ep transport.Endpoint, solution string) (*transport.OpenReply, error) {
	body := sessionEnvelope{User: ep.User, SessionID: ep.SessionID, Solution: solution}
	var reply transport.OpenReply
	if err := c.post(ctx, ep, "open", body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) KeepaliveSession(ctx context.Context, ep transport.Endpoint) (*transport.KeepaliveReply, error) {
	body := sessionEnvelope{User: ep.User, SessionID: ep.SessionID}
	var reply transport.KeepaliveReply
	if err := c.post(ctx, ep, "keepalive", body, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (c *Client) CloseSession(ctx context.Context, ep transport.Endpoint) error {
	body := sessionEnvelope{User: ep.User, SessionID: ep.SessionID}
	return c.post(ctx, ep, "close", body, nil)
}

func (c *Client) post(ctx context.Context, ep transport.Endpoint, action string, body, reply any) error {
	endpoint, err := url.JoinPath(ep.Server, "v1", "session", action)
	if err != nil {
		return fmt.Errorf("building session URL: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("session %s call: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("session %s call: unexpected status %d", action, resp.StatusCode)
	}
	if reply == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("decoding %s reply: %w", action, err)
	}
	return nil
}
