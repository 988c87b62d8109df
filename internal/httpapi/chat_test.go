package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corewire/assistant/internal/approval"
)

func TestHandleApproveResolvesByApprovalID(t *testing.T) {
	gate := approval.New(time.Second)
	s := New(nil, nil, nil, gate, "", nil)

	idCh := make(chan string, 1)
	notify := func(ctx context.Context, req approval.Request) { idCh <- req.ID }

	resultCh := make(chan bool, 1)
	go func() {
		resultCh <- gate.Request(context.Background(), nil, notify, "conv-1", "write_file", nil, "mutating")
	}()

	approvalID := <-idCh

	req := httptest.NewRequest(http.MethodPost, "/api/chat/conv-1/approve",
		strings.NewReader(`{"approval_id":"`+approvalID+`","approved":true}`))
	req.SetPathValue("id", "conv-1")
	rec := httptest.NewRecorder()
	s.handleApprove(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, http.StatusOK, rec.Body.String())
	}

	select {
	case approved := <-resultCh:
		if !approved {
			t.Fatal("Gate.Request returned false, want true after approving")
		}
	case <-time.After(time.Second):
		t.Fatal("Gate.Request never returned after handleApprove resolved it")
	}
}

func TestHandleApproveUnknownID(t *testing.T) {
	gate := approval.New(time.Second)
	s := New(nil, nil, nil, gate, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/conv-1/approve",
		strings.NewReader(`{"approval_id":"does-not-exist","approved":true}`))
	req.SetPathValue("id", "conv-1")
	rec := httptest.NewRecorder()
	s.handleApprove(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleApproveIgnoresPathID(t *testing.T) {
	// The path's {id} names the conversation, not the approval: a request
	// that only supplies the path id (no matching approval_id) must not
	// resolve an unrelated pending approval that happens to share it.
	gate := approval.New(time.Second)
	s := New(nil, nil, nil, gate, "", nil)

	idCh := make(chan string, 1)
	notify := func(ctx context.Context, req approval.Request) { idCh <- req.ID }
	go gate.Request(context.Background(), nil, notify, "shared-id", "write_file", nil, "mutating")
	<-idCh

	req := httptest.NewRequest(http.MethodPost, "/api/chat/shared-id/approve",
		strings.NewReader(`{"approval_id":"shared-id","approved":true}`))
	req.SetPathValue("id", "shared-id")
	rec := httptest.NewRecorder()
	s.handleApprove(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d: the conversation id must not double as an approval id", rec.Code, http.StatusNotFound)
	}
}
