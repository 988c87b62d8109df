package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/sharedstate"
)

func TestHandleWarnings(t *testing.T) {
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{}, "")
	holder.SetWarnings([]chatmodel.Warning{
		{Code: chatmodel.WarnNoVectorStore, Message: "no vector store configured", Severity: chatmodel.SeverityWarning},
	})
	s := New(nil, holder, nil, nil, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/warnings", nil)
	rec := httptest.NewRecorder()
	s.handleWarnings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp struct {
		Warnings []chatmodel.Warning `json:"warnings"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp.Warnings) != 1 || resp.Warnings[0].Code != chatmodel.WarnNoVectorStore {
		t.Fatalf("Warnings = %+v, want one no_vector_store entry", resp.Warnings)
	}
}

func TestHandleWarningsEmpty(t *testing.T) {
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{}, "")
	s := New(nil, holder, nil, nil, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/warnings", nil)
	rec := httptest.NewRecorder()
	s.handleWarnings(rec, req)

	var resp struct {
		Warnings []chatmodel.Warning `json:"warnings"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp.Warnings) != 0 {
		t.Fatalf("Warnings = %+v, want empty", resp.Warnings)
	}
}
