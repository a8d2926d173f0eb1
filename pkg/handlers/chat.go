package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	"github.com/ekaya-inc/ekaya-analyst/pkg/services"
)

const maxMessageLength = 2000

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the answer to one question.
type ChatResponse struct {
	RequestID string        `json:"request_id"`
	Intent    models.Intent `json:"intent"`
	Params    models.Params `json:"params"`
	Reply     string        `json:"reply"`
}

// ChatHandler exposes the assistant and its cache controls over HTTP.
type ChatHandler struct {
	assistant services.Assistant
	forecasts services.ForecastService
	reflector services.SchemaReflector
	logger    *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(
	assistant services.Assistant,
	forecasts services.ForecastService,
	reflector services.SchemaReflector,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		assistant: assistant,
		forecasts: forecasts,
		reflector: reflector,
		logger:    logger,
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("DELETE /api/forecast-cache/{sku}", h.InvalidateForecasts)
	mux.HandleFunc("POST /api/schema/refresh", h.RefreshSchema)
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_message", "Message is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if utf8.RuneCountInString(message) > maxMessageLength {
		if err := ErrorResponse(w, http.StatusBadRequest, "message_too_long", "Message exceeds 2000 characters"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	reply := h.assistant.Ask(r.Context(), message)
	response := ChatResponse{
		RequestID: reply.RequestID.String(),
		Intent:    reply.Intent,
		Params:    reply.Params,
		Reply:     reply.Text,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

// InvalidateForecasts handles DELETE /api/forecast-cache/{sku}.
func (h *ChatHandler) InvalidateForecasts(w http.ResponseWriter, r *http.Request) {
	sku := strings.TrimSpace(r.PathValue("sku"))
	if sku == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_sku", "SKU is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.forecasts.Invalidate(r.Context(), sku); err != nil {
		h.logger.Error("Failed to invalidate forecast cache", zap.String("sku", sku), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "invalidate_failed", "Failed to invalidate forecast cache"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshSchema handles POST /api/schema/refresh.
func (h *ChatHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	h.reflector.Invalidate()
	schema, err := h.reflector.Schema(r.Context())
	if err != nil {
		h.logger.Error("Failed to reload schema", zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadGateway, "schema_unavailable", "Failed to reload schema"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"tables": schema.TableNames()}); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}
