// Package api provides HTTP handlers for the chat server REST API and its
// WebSocket live feed.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coregx/livechat"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gorilla/websocket"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Handler holds dependencies for API handlers.
type Handler struct {
	gateway  *livechat.ChatGateway
	store    *livechat.MessageStore
	hub      *livechat.SubscriptionHub
	logger   livechat.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler. allowedOrigins restricts which
// browser origins may open the live feed; "*" allows any origin and an empty
// list allows same-host requests only.
func NewHandler(
	gateway *livechat.ChatGateway,
	store *livechat.MessageStore,
	hub *livechat.SubscriptionHub,
	logger livechat.Logger,
	allowedOrigins []string,
) *Handler {
	h := &Handler{
		gateway: gateway,
		store:   store,
		hub:     hub,
		logger:  livechat.WithComponent(logger, "api"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginChecker(allowedOrigins),
	}
	return h
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", h.HandleMessages)
	mux.HandleFunc("/api/v1/messages/live", h.HandleLiveFeed)
	mux.HandleFunc("/api/v1/devices", h.HandleRegisterDevice)
	mux.HandleFunc("/api/v1/health", h.HandleHealth)
	return mux
}

// PostMessageRequest represents a post message request.
type PostMessageRequest struct {
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}

// RegisterDeviceRequest represents a device registration request.
type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Validate checks the request shape. Content rules are enforced by the store.
func (r RegisterDeviceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// HandleMessages dispatches /api/v1/messages by method.
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandlePostMessage(w, r)
	case http.MethodGet:
		h.HandleListRecent(w, r)
	default:
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

// HandlePostMessage handles POST /api/v1/messages
func (h *Handler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.gateway.PostMessage(r.Context(), req.Nickname, req.Text)
	if err != nil {
		h.respondServiceError(w, err, "Failed to post message")
		return
	}

	h.respondSuccess(w, http.StatusCreated, msg, "Message posted")
}

// HandleListRecent handles GET /api/v1/messages?limit=N
func (h *Handler) HandleListRecent(w http.ResponseWriter, r *http.Request) {
	limit := livechat.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "limit must be an integer", livechat.ErrCodeValidation)
			return
		}
		limit = parsed
	}

	messages, err := h.gateway.ListRecent(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err, "Failed to list messages")
		return
	}

	h.respondSuccess(w, http.StatusOK, messages, "")
}

// HandleRegisterDevice handles POST /api/v1/devices
func (h *Handler) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var req RegisterDeviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), livechat.ErrCodeValidation)
		return
	}

	device, err := h.store.RegisterDevice(r.Context(), req.Token, req.Platform)
	if err != nil {
		h.respondServiceError(w, err, "Failed to register device")
		return
	}

	h.respondSuccess(w, http.StatusCreated, device, "Device registered")
}

// HealthResponse is the payload of the health endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Hub       livechat.HubStats `json:"hub"`
}

// HandleHealth handles GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	h.respondSuccess(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Hub:       h.hub.Stats(),
	}, "")
}

// decode reads a JSON body into dst, responding with 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "INVALID_JSON")
		return false
	}
	return true
}

// respondServiceError maps a livechat error to an HTTP status.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case livechat.IsValidation(err):
		h.respondError(w, http.StatusBadRequest, err.Error(), livechat.ErrCodeValidation)
	case livechat.IsClosed(err):
		h.respondError(w, http.StatusServiceUnavailable, "Server is shutting down", livechat.ErrCodeClosed)
	case livechat.IsPersistence(err):
		h.logger.Errorf("%s: %v", fallback, err)
		h.respondError(w, http.StatusInternalServerError, fallback, livechat.ErrCodeDatabase)
	default:
		h.logger.Errorf("%s: %v", fallback, err)
		h.respondError(w, http.StatusInternalServerError, fallback, "INTERNAL_ERROR")
	}
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}

// respondSuccess sends a success response.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}
