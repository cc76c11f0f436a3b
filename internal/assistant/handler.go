package assistant

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
)

type Handler struct {
	logger *slog.Logger
	agent  *Agent
}

func NewHandler(logger *slog.Logger, agent *Agent) *Handler {
	return &Handler{logger: logger, agent: agent}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/ask", h.ask)
}

type askRequest struct {
	Message string `json:"message"`
}

type askResponse struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if req.Message == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "message is required")
		return
	}

	conversationID := uuid.NewString()
	answer, err := h.agent.Ask(r.Context(), req.Message)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "assistant request failed",
			"conversation_id", conversationID, "error", err)
		httpx.Problem(w, http.StatusBadGateway, "Assistant Unavailable", "the assistant could not answer")
		return
	}

	httpx.JSON(w, http.StatusOK, askResponse{
		ConversationID: conversationID,
		Answer:         answer,
	})
}
