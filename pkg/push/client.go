package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zipdrop/zipdrop-backend/pkg/config"
	pkgerrors "github.com/zipdrop/zipdrop-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

var errEndpointRequired = errors.New("push endpoint is required")

// Client delivers push messages to the mobile gateway over HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	serverKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the push gateway client from configuration.
func NewClient(cfg config.PushConfig, opts ...Option) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errEndpointRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := &Client{
		endpoint:   endpoint,
		serverKey:  strings.TrimSpace(cfg.ServerKey),
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Message is the payload posted to the push gateway.
type Message struct {
	UserID uuid.UUID `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Link   string    `json:"link,omitempty"`
}

// Send posts a single push message. Delivery is best-effort; callers decide
// whether a failure is fatal.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "push client not configured")
	}
	if msg.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "push recipient is required")
	}
	if strings.TrimSpace(msg.Title) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "push title is required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal push message")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build push request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.serverKey != "" {
		httpReq.Header.Set("Authorization", "key="+c.serverKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute push request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "push request failed")
	}

	return nil
}
