package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/orchestrator"
)

// chatRequest is the POST /api/chat body. ConversationID empty means
// "start a new conversation"; otherwise the turn is appended to it.
type chatRequest struct {
	ConversationID string              `json:"conversation_id,omitempty"`
	Messages       []chatmodel.Message `json:"messages"`
	DisableMemory  bool                `json:"disable_memory,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "messages must not be empty")
		return
	}

	events, err := s.Orchestrator.Run(r.Context(), orchestrator.TurnRequest{
		ConversationID: req.ConversationID,
		Messages:       req.Messages,
		DisableMemory:  req.DisableMemory,
		Source:         "web",
	})
	if err != nil {
		if _, ok := err.(*orchestrator.ErrConversationNotFound); ok {
			s.notFound(w, err.Error())
			return
		}
		s.internalError(w, err.Error())
		return
	}

	s.streamSSE(w, r, events)
}

// approveRequest is the POST /api/chat/{id}/approve body. The path's {id}
// names the conversation; the approval itself is keyed by ApprovalID,
// which the approval_request event in the conversation's SSE stream
// carries.
type approveRequest struct {
	ApprovalID string `json:"approval_id"`
	Approved   bool   `json:"approved"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if !s.Approval.Resolve(req.ApprovalID, req.Approved) {
		s.notFound(w, "no pending approval with that id")
		return
	}

	s.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
	}{OK: true})
}
