// Package client is a remote livechat.ChatBackend that talks to chat-server
// over its REST API and WebSocket live feed.
//
// Example usage:
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := livechat.NewClientSession(c)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.Initialize(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Cleanup()
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// API paths served by chat-server.
const (
	messagesPath = "/api/v1/messages"
	livePath     = "/api/v1/messages/live"
	devicesPath  = "/api/v1/devices"
)

// Client implements livechat.ChatBackend against a remote server.
//
// Thread safety: Safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     livechat.Logger
	queueSize  int
}

// Option is a function that configures a Client.
type Option func(*Client) error

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeConfiguration, "invalid base URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, livechat.NewError(livechat.ErrCodeConfiguration,
			fmt.Sprintf("base URL scheme must be http or https, got %q", u.Scheme))
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		dialer:     websocket.DefaultDialer,
		logger:     &livechat.NoopLogger{},
		queueSize:  livechat.DefaultQueueSize,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, livechat.NewErrorWithCause(livechat.ErrCodeConfiguration, "failed to apply client option", err)
		}
	}

	c.logger = livechat.WithComponent(c.logger, "client")
	return c, nil
}

// WithHTTPClient sets the HTTP client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithDialer sets the WebSocket dialer used for live feeds.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) error {
		if d == nil {
			return fmt.Errorf("dialer cannot be nil")
		}
		c.dialer = d
		return nil
	}
}

// WithLogger sets the logger instance for the client.
func WithLogger(logger livechat.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// envelope mirrors the server's success and error responses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// PostMessage sends a message to the server.
// A 400 response is returned as a VALIDATION_ERROR.
func (c *Client) PostMessage(ctx context.Context, nickname, text string) (model.Message, error) {
	var msg model.Message
	err := c.do(ctx, http.MethodPost, messagesPath, nil,
		map[string]string{"nickname": nickname, "text": text}, &msg)
	return msg, err
}

// ListRecent returns the newest limit messages, oldest first.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, livechat.NewError(livechat.ErrCodeValidation, fmt.Sprintf("limit must be > 0, got %d", limit))
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}

	var messages []model.Message
	if err := c.do(ctx, http.MethodGet, messagesPath, query, nil, &messages); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// RegisterDevice registers a push token with the server.
func (c *Client) RegisterDevice(ctx context.Context, token, platform string) (model.DeviceToken, error) {
	var device model.DeviceToken
	err := c.do(ctx, http.MethodPost, devicesPath, nil,
		map[string]string{"token": token, "platform": platform}, &device)
	return device, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := *c.baseURL
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: failed to decode response (status %d): %w", method, path, resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		return responseError(resp.StatusCode, env)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
	}
	return nil
}

func responseError(status int, env envelope) error {
	message := env.Message
	if message == "" {
		message = env.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusBadRequest:
		return livechat.NewError(livechat.ErrCodeValidation, message)
	case status == http.StatusServiceUnavailable:
		return livechat.NewError(livechat.ErrCodeClosed, message)
	case env.Code == livechat.ErrCodeDatabase:
		return livechat.NewError(livechat.ErrCodeDatabase, message)
	default:
		return fmt.Errorf("server returned %d: %s", status, message)
	}
}

// OpenLiveFeed dials the server's live endpoint. The feed is closed when ctx
// is done, when Close is called or when the connection drops.
func (c *Client) OpenLiveFeed(ctx context.Context) (livechat.Feed, error) {
	u := *c.baseURL
	u.Path += livePath
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open live feed: %w", err)
	}

	f := &remoteFeed{
		id:     uuid.NewString(),
		conn:   conn,
		ch:     make(chan model.Message, c.queueSize),
		done:   make(chan struct{}),
		logger: c.logger,
	}
	go f.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.done:
		}
	}()

	c.logger.Infof("Live feed opened: id=%s", f.id)
	return f, nil
}

// remoteFeed is a livechat.Feed backed by a WebSocket connection.
type remoteFeed struct {
	id     string
	conn   *websocket.Conn
	ch     chan model.Message
	done   chan struct{}
	once   sync.Once
	logger livechat.Logger
}

func (f *remoteFeed) ID() string {
	return f.id
}

func (f *remoteFeed) Messages() <-chan model.Message {
	return f.ch
}

// Close sends a close frame and tears down the connection. Idempotent.
func (f *remoteFeed) Close() {
	f.once.Do(func() {
		close(f.done)
		deadline := time.Now().Add(time.Second)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = f.conn.Close()
	})
}

// readLoop decodes frames until the connection ends, then closes the channel.
func (f *remoteFeed) readLoop() {
	defer close(f.ch)
	defer f.Close()

	for {
		var msg model.Message
		if err := f.conn.ReadJSON(&msg); err != nil {
			select {
			case <-f.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					f.logger.Warnf("Live feed %s ended: %v", f.id, err)
				}
			}
			return
		}

		select {
		case f.ch <- msg:
		default:
			// Keep the newest messages, like the server-side queue.
			select {
			case <-f.ch:
			default:
			}
			f.ch <- msg
		}
	}
}

var _ livechat.ChatBackend = (*Client)(nil)
