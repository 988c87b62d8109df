// Package httpapi is the HTTP surface for the assistant runtime: chat
// streaming over SSE, conversation CRUD, config read/write with
// validation and hot-reload, memory and embedder diagnostics, and bearer
// token auth. Grounded directly on buddy-server/src/api/mod.rs's route
// set and ChatEvent/ApiError shapes (original_source), reworked onto
// net/http.ServeMux in the style of the teacher's internal/gateway
// (http.NewServeMux, handlers as methods on a long-lived Server,
// json.Marshal+w.Write responses).
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corewire/assistant/internal/approval"
	"github.com/corewire/assistant/internal/convstore"
	"github.com/corewire/assistant/internal/observability"
	"github.com/corewire/assistant/internal/orchestrator"
	"github.com/corewire/assistant/internal/reload"
	"github.com/corewire/assistant/internal/sharedstate"
)

// Server wires the conversation store, shared state, orchestrator, and
// approval gate into an http.Handler.
type Server struct {
	Store        *convstore.Store
	State        *sharedstate.Holder
	Orchestrator *orchestrator.Orchestrator
	Approval     *approval.Gate
	VectorDBPath string
	Logger       *slog.Logger

	// Tracer is optional: a nil Tracer disables the tracingMiddleware
	// span entirely. Assigned after New, same as Orchestrator.Tracer.
	Tracer *observability.Tracer
}

// New builds a Server. A nil logger defaults to slog.Default().
func New(store *convstore.Store, state *sharedstate.Holder, orch *orchestrator.Orchestrator, gate *approval.Gate, vectorDBPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Store: store, State: state, Orchestrator: orch, Approval: gate, VectorDBPath: vectorDBPath, Logger: logger}
}

// Mount registers every route on mux, wrapping everything but /metrics and
// /api/auth/* in the authentication middleware.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/auth/verify", s.handleAuthVerify)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/chat", s.handleChat)
	protected.HandleFunc("POST /api/chat/{id}/approve", s.handleApprove)
	protected.HandleFunc("GET /api/conversations", s.handleListConversations)
	protected.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	protected.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	protected.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	protected.HandleFunc("GET /api/config", s.handleGetConfig)
	protected.HandleFunc("PUT /api/config/{section}", s.handlePutConfigSection)
	protected.HandleFunc("POST /api/config/test-provider", s.handleTestProvider)
	protected.HandleFunc("POST /api/config/discover-models", s.handleDiscoverModels)
	protected.HandleFunc("GET /api/embedder/health", s.handleEmbedderHealth)
	protected.HandleFunc("GET /api/memory/status", s.handleMemoryStatus)
	protected.HandleFunc("POST /api/memory/migrate", s.handleMemoryMigrate)
	protected.HandleFunc("DELETE /api/memory", s.handleMemoryClear)
	protected.HandleFunc("GET /api/warnings", s.handleWarnings)

	mux.Handle("/api/", s.tracingMiddleware(s.authMiddleware(protected)))
}

// tracingMiddleware starts a span around every /api/ request when a
// Tracer is configured; it is a pass-through otherwise.
func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	if s.Tracer == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.Tracer.TraceHTTPRequest(r.Context(), r.Method, r.URL.Path)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewServeMux builds a ready-to-serve *http.ServeMux with every route
// mounted, for convenience callers that don't need to add their own routes.
func (s *Server) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	s.Mount(mux)
	return mux
}

// apiError is the structured error body every handler uses on failure.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(body)
	if err != nil {
		s.Logger.Error("failed to marshal response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.Logger.Debug("response write failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, apiError{Code: code, Message: message})
}

func (s *Server) internalError(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusInternalServerError, "internal_error", message)
}

func (s *Server) notFound(w http.ResponseWriter, message string) {
	s.writeError(w, http.StatusNotFound, "not_found", message)
}

func (s *Server) validationError(w http.ResponseWriter, errs []reload.FieldError) {
	s.writeJSON(w, http.StatusBadRequest, struct {
		Errors []reload.FieldError `json:"errors"`
	}{Errors: errs})
}

