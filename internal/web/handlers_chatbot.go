package web

import (
	"fmt"
	"net/http"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// handleChatbot answers one styling question. The chat service owns the
// fallback behavior, so this handler never returns an upstream failure.
func (s *Server) handleChatbot(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Message == "" {
		s.respondErrorWith(w, r, http.StatusBadRequest,
			UserMessage{Message: "Message is required", Code: "VAL002"},
			fmt.Errorf("chatbot message missing"))
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: s.deps.Chat.Reply(r.Context(), req.Message)})
}
