package api

import (
	"fmt"
	"net/http"

	"github.com/Micos01/dir-analysis/internal/events"
	"github.com/Micos01/dir-analysis/internal/metrics"
)

// streamEvents streams ingestion progress as server-sent events until the client
// disconnects.
func (h *handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	if h.deps.Broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := h.deps.Broadcaster.Subscribe()
	defer h.deps.Broadcaster.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
				return
			}
			flusher.Flush()
			metrics.RecordSSEEventSent()
		}
	}
}
