package httpapi

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/convstore"
)

func newConversationServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conv.db")
	store, err := convstore.Open(path)
	if err != nil {
		t.Fatalf("convstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := newTestServer(t, nil)
	s.Store = store
	return s
}

func TestHandleCreateAndGetConversation(t *testing.T) {
	s := newConversationServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{"title":"hello","source":"web"}`))
	rec := httptest.NewRecorder()
	s.handleCreateConversation(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (body %q)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created chatmodel.Conversation
	decodeJSON(t, rec, &created)
	if created.ID == "" {
		t.Fatal("created conversation has no id")
	}
	if created.Title != "hello" {
		t.Fatalf("created.Title = %q, want %q", created.Title, "hello")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/conversations/"+created.ID, nil)
	getReq.SetPathValue("id", created.ID)
	getRec := httptest.NewRecorder()
	s.handleGetConversation(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", getRec.Code, http.StatusOK)
	}
	var fetched chatmodel.Conversation
	decodeJSON(t, getRec, &fetched)
	if fetched.ID != created.ID {
		t.Fatalf("fetched.ID = %q, want %q", fetched.ID, created.ID)
	}
}

func TestHandleCreateConversationDefaultsSource(t *testing.T) {
	s := newConversationServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	s.handleCreateConversation(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var created chatmodel.Conversation
	decodeJSON(t, rec, &created)
	if created.Source != "web" {
		t.Fatalf("created.Source = %q, want %q", created.Source, "web")
	}
}

func TestHandleGetConversationNotFound(t *testing.T) {
	s := newConversationServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	s.handleGetConversation(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleListConversations(t *testing.T) {
	s := newConversationServer(t)

	for _, title := range []string{"first", "second"} {
		req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{"title":"`+title+`"}`))
		rec := httptest.NewRecorder()
		s.handleCreateConversation(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("setup create %q: status = %d", title, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	s.handleListConversations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var summaries []chatmodel.ConversationSummary
	decodeJSON(t, rec, &summaries)
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
}

func TestHandleDeleteConversation(t *testing.T) {
	s := newConversationServer(t)

	createReq := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{"title":"bye"}`))
	createRec := httptest.NewRecorder()
	s.handleCreateConversation(createRec, createReq)
	var created chatmodel.Conversation
	decodeJSON(t, createRec, &created)

	delReq := httptest.NewRequest(http.MethodDelete, "/api/conversations/"+created.ID, nil)
	delReq.SetPathValue("id", created.ID)
	delRec := httptest.NewRecorder()
	s.handleDeleteConversation(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", delRec.Code, http.StatusNoContent)
	}

	delReq2 := httptest.NewRequest(http.MethodDelete, "/api/conversations/"+created.ID, nil)
	delReq2.SetPathValue("id", created.ID)
	delRec2 := httptest.NewRecorder()
	s.handleDeleteConversation(delRec2, delReq2)
	if delRec2.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want %d", delRec2.Code, http.StatusNotFound)
	}
}

func TestHandleCreateConversationMalformedBody(t *testing.T) {
	s := newConversationServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	s.handleCreateConversation(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
