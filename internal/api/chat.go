package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/teamcheckmate/chaekcheck/internal/chat"
	"github.com/teamcheckmate/chaekcheck/internal/config"
)

// maxChatBodyBytes bounds the request body (64 KB is generous for a question).
const maxChatBodyBytes = 64 * 1024

// chatRequest is the POST /chat payload.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// chatResponse is the POST /chat result.
type chatResponse struct {
	Answer         string          `json:"answer"`
	Sources        []chat.Citation `json:"sources"`
	GenerationTime float64         `json:"generation_time"`
}

// chatHandler holds dependencies for the chat endpoint.
type chatHandler struct {
	agent  *chat.Agent
	logger *slog.Logger
}

// send handles POST /chat — one question, one grounded answer with sources.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", h.logger)
		return
	}
	if req.SessionID == "" {
		req.SessionID = config.DefaultSessionID
	}

	answer, err := h.agent.Ask(r.Context(), req.SessionID, req.Message)
	if err != nil {
		requestID, _ := requestIDFromContext(r.Context())
		h.logger.Error("chat request failed",
			"error", err, "session_id", req.SessionID, "request_id", requestID)
		writeError(w, http.StatusInternalServerError, err.Error(), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:         answer.Text,
		Sources:        answer.Citations,
		GenerationTime: answer.Elapsed.Seconds(),
	}, h.logger)
}
