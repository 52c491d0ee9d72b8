package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// maxBodySize caps a gateway response body.
	maxBodySize = 8 << 20
)

// Ensure Client implements the interface.
var _ driven.SessionClient = (*Client)(nil)

// envelope is the gateway response wrapper.
type envelope struct {
	OK          bool         `json:"ok"`
	Result      *historyPage `json:"result,omitempty"`
	ErrorCode   int          `json:"error_code,omitempty"`
	Description string       `json:"description,omitempty"`
	Parameters  *parameters  `json:"parameters,omitempty"`
}

type parameters struct {
	RetryAfter int  `json:"retry_after,omitempty"`
	Global     bool `json:"global,omitempty"`
}

type historyPage struct {
	Messages     []message `json:"messages"`
	NextOffsetID int64     `json:"next_offset_id"`
	HasMore      bool      `json:"has_more"`
}

type message struct {
	ID   int64  `json:"id"`
	Date int64  `json:"date"`
	Text string `json:"text"`
}

// Client is a session client for one gateway session. Safe for concurrent use.
type Client struct {
	endpoint *url.URL
	http     *http.Client
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	base    *http.Client
	timeout time.Duration
}

// WithHTTPClient sets the transport the bearer token is layered on.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.base = c
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// NewClient creates a client for the gateway in cfg. The session token is
// sent as a bearer token on every request.
func NewClient(ctx context.Context, cfg domain.SessionSettings, opts ...Option) (*Client, error) {
	if !cfg.IsConfigured() {
		return nil, domain.ErrSessionNotConfigured
	}
	endpoint, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("%w: session endpoint %q", domain.ErrInvalidRequest, cfg.Endpoint)
	}

	o := clientOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = o.timeout

	return &Client{endpoint: endpoint, http: hc}, nil
}

// FetchPage returns up to limit messages older than cursor, newest first.
func (c *Client) FetchPage(ctx context.Context, channel, cursor string, limit int) (*driven.Page, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	u := c.endpoint.JoinPath("channels", channel, "messages")
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cur.OffsetID > 0 {
		q.Set("offset_id", strconv.FormatInt(cur.OffsetID, 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logger.Debug("telegram: GET %s", u.Path)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("telegram: %s: %w: %w", channel, domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("telegram: read %s: %w: %w", channel, domain.ErrTransient, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if resp.StatusCode != http.StatusOK || (decodeErr == nil && !env.OK) {
		if decodeErr != nil {
			return nil, classify(channel, resp.StatusCode, resp.Header, nil)
		}
		return nil, classify(channel, resp.StatusCode, resp.Header, &env)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("telegram: decode %s: %w: %w", channel, domain.ErrTransient, decodeErr)
	}
	if env.Result == nil {
		return nil, fmt.Errorf("telegram: %s: empty result: %w", channel, domain.ErrTransient)
	}

	return toPage(channel, cursor, env.Result), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func toPage(channel, cursor string, p *historyPage) *driven.Page {
	page := &driven.Page{Messages: make([]domain.RawMessage, 0, len(p.Messages))}
	for _, m := range p.Messages {
		page.Messages = append(page.Messages, domain.RawMessage{
			Channel:  channel,
			ID:       m.ID,
			Text:     m.Text,
			PostedAt: time.Unix(m.Date, 0).UTC(),
			Cursor:   cursor,
		})
	}
	if p.HasMore && p.NextOffsetID > 0 {
		page.HasMore = true
		page.NextCursor = Cursor{OffsetID: p.NextOffsetID}.Encode()
	}
	return page
}
