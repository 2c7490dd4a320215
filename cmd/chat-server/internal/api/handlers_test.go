package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/adapters/memory"
	"github.com/coregx/livechat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	repos   *memory.Repositories
	hub     *livechat.SubscriptionHub
	gateway *livechat.ChatGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repos := memory.NewRepositories()
	store, err := livechat.NewMessageStore(
		livechat.WithMessageRepository(repos.Message),
		livechat.WithDeviceTokenRepository(repos.DeviceToken),
	)
	require.NoError(t, err)

	hub, err := livechat.NewSubscriptionHub()
	require.NoError(t, err)

	gateway, err := livechat.NewChatGateway(livechat.WithStore(store), livechat.WithHub(hub))
	require.NoError(t, err)

	handler := NewHandler(gateway, store, hub, &livechat.NoopLogger{}, nil)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})

	return &testServer{Server: srv, repos: repos, hub: hub, gateway: gateway}
}

func (s *testServer) request(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestHandlePostMessage(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.request(t, http.MethodPost, "/api/v1/messages", `{"nickname":"Alice","text":"hello"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, true, payload["success"])

	data := payload["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "Alice", data["nickname"])
	assert.Equal(t, "hello", data["text"])
	assert.NotEmpty(t, data["createdUtc"])
	assert.Equal(t, 1, srv.repos.Message.Len())
}

func TestHandlePostMessage_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty text", `{"nickname":"Alice","text":""}`, livechat.ErrCodeValidation},
		{"missing nickname", `{"text":"hello"}`, livechat.ErrCodeValidation},
		{"text too long", `{"nickname":"Alice","text":"` + strings.Repeat("x", 501) + `"}`, livechat.ErrCodeValidation},
		{"malformed json", `{"nickname":`, "INVALID_JSON"},
		{"unknown field", `{"nickname":"Alice","text":"hi","room":"x"}`, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, payload := srv.request(t, http.MethodPost, "/api/v1/messages", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, payload["code"])
		})
	}

	assert.Equal(t, 0, srv.repos.Message.Len())
}

func TestHandleListRecent(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := srv.gateway.PostMessage(ctx, "Alice", text)
		require.NoError(t, err)
	}

	resp, payload := srv.request(t, http.MethodGet, "/api/v1/messages", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["data"], 3)

	resp, payload = srv.request(t, http.MethodGet, "/api/v1/messages?limit=2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	items := payload["data"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "two", items[0].(map[string]interface{})["text"])
	assert.Equal(t, "three", items[1].(map[string]interface{})["text"])

	for _, query := range []string{"limit=abc", "limit=0", "limit=-5"} {
		resp, payload = srv.request(t, http.MethodGet, "/api/v1/messages?"+query, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.Equal(t, livechat.ErrCodeValidation, payload["code"], query)
	}
}

func TestHandleListRecent_Empty(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.request(t, http.MethodGet, "/api/v1/messages", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []interface{}{}, payload["data"])
}

func TestHandleMessages_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.request(t, http.MethodDelete, "/api/v1/messages", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = srv.request(t, http.MethodGet, "/api/v1/devices", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = srv.request(t, http.MethodPost, "/api/v1/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleRegisterDevice(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.request(t, http.MethodPost, "/api/v1/devices", `{"token":"fcm-token-123","platform":"Android"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	data := payload["data"].(map[string]interface{})
	assert.Equal(t, "android", data["platform"])
	assert.NotContains(t, data, "token", "tokens are never echoed")

	resp, _ = srv.request(t, http.MethodPost, "/api/v1/devices", `{"token":"fcm-token-123","platform":"android"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	devices, err := srv.repos.DeviceToken.FindAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 1)

	resp, payload = srv.request(t, http.MethodPost, "/api/v1/devices", `{"platform":"ios"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, livechat.ErrCodeValidation, payload["code"])

	resp, payload = srv.request(t, http.MethodPost, "/api/v1/devices", `{"token":"abc","platform":"symbian"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, livechat.ErrCodeValidation, payload["code"])
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	sub, err := srv.hub.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	resp, payload := srv.request(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := payload["data"].(map[string]interface{})
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, Version, data["version"])
	hub := data["hub"].(map[string]interface{})
	assert.Equal(t, float64(1), hub["subscribers"])
}

func TestHandleLiveFeed_HubClosed(t *testing.T) {
	srv := newTestServer(t)
	srv.hub.Close()

	resp, payload := srv.request(t, http.MethodGet, "/api/v1/messages/live", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, livechat.ErrCodeClosed, payload["code"])
}

func TestRespondServiceError(t *testing.T) {
	h := &Handler{logger: &livechat.NoopLogger{}}

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{livechat.NewError(livechat.ErrCodeValidation, "bad"), http.StatusBadRequest, livechat.ErrCodeValidation},
		{livechat.ErrHubClosed, http.StatusServiceUnavailable, livechat.ErrCodeClosed},
		{livechat.NewError(livechat.ErrCodeDatabase, "down"), http.StatusInternalServerError, livechat.ErrCodeDatabase},
		{context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.respondServiceError(rec, tt.err, "failed")

		assert.Equal(t, tt.status, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.code, body.Code)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no origin header", []string{"https://chat.example.com"}, "", "api.example.com", true},
		{"wildcard", []string{"*"}, "https://evil.example.net", "api.example.com", true},
		{"listed origin", []string{"https://chat.example.com"}, "https://chat.example.com", "api.example.com", true},
		{"listed origin case-insensitive", []string{"https://Chat.Example.com/"}, "https://chat.example.com", "api.example.com", true},
		{"unlisted origin", []string{"https://chat.example.com"}, "https://other.example.com", "api.example.com", false},
		{"scheme mismatch", []string{"https://chat.example.com"}, "http://chat.example.com", "api.example.com", false},
		{"same host by default", nil, "http://localhost:8080", "localhost:8080", true},
		{"cross host by default", nil, "http://localhost:3000", "localhost:8080", false},
		{"garbage origin", nil, "not a url", "localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := newOriginChecker(tt.allowed)
			r := httptest.NewRequest(http.MethodGet, "http://"+tt.host+"/api/v1/messages/live", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(r))
		})
	}
}

// waitForSubscribers blocks until the hub has n live subscriptions.
func waitForSubscribers(t *testing.T, hub *livechat.SubscriptionHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Stats().Subscribers == n
	}, 2*time.Second, 5*time.Millisecond)
}

// receive reads one message from ch or fails after a timeout.
func receive(t *testing.T, ch <-chan model.Message) model.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "feed closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live message")
		return model.Message{}
	}
}
