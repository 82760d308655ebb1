package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const DefaultHeartbeat = 15 * time.Second

type laggedFrame struct {
	Missed uint64 `json:"missed"`
}

// ServeSSE streams sub to w until the subscription or the request ends.
// Each event becomes an "event: <topic>" frame. When the subscription has
// dropped events since the last frame, a "lagged" frame tells the client to
// refetch the retro.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, sub *Subscription, heartbeat time.Duration) {
	defer sub.Close()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, ": subscribed %s\n\n", sub.ID)
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	var reported uint64
	reportLag := func() {
		missed := sub.Missed()
		if missed == reported {
			return
		}
		reported = missed
		h.writeFrame(w, "lagged", laggedFrame{Missed: missed})
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportLag()
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			reportLag()
			h.writeFrame(w, string(ev.Topic), ev)
			flusher.Flush()
		}
	}
}

func (h *Hub) writeFrame(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("Failed to marshal SSE frame", "event", event, "error", err)
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
