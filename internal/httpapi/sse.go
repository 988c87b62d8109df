package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/corewire/assistant/internal/orchestrator"
)

// streamSSE drains events onto w as `data: <json>\n\n` frames, flushing
// after each one so the client sees tokens as they arrive. Stops early if
// the client disconnects (ctx.Done via r.Context()).
func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request, events <-chan orchestrator.ChatEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.Logger.Error("failed to marshal chat event", "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
