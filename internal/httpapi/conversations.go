package httpapi

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.Store.ListConversations(r.Context())
	if err != nil {
		s.internalError(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

type createConversationRequest struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}
	}
	if req.Source == "" {
		req.Source = "web"
	}

	conv, err := s.Store.CreateConversation(r.Context(), req.Title, req.Source)
	if err != nil {
		s.internalError(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.Store.GetConversation(r.Context(), id)
	if err != nil {
		s.internalError(w, err.Error())
		return
	}
	if conv == nil {
		s.notFound(w, "no conversation with that id")
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.Store.DeleteConversation(r.Context(), id)
	if err != nil {
		s.internalError(w, err.Error())
		return
	}
	if !deleted {
		s.notFound(w, "no conversation with that id")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
