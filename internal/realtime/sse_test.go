package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/domain"
)

// streamRecorder is a flushable ResponseWriter safe to read while written.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   strings.Builder
	status int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: http.Header{}}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) WriteHeader(status int) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func (r *streamRecorder) waitFor(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(r.String(), substr) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in stream:\n%s", substr, r.String())
}

func serve(t *testing.T, hub *Hub, sub *Subscription, heartbeat time.Duration) (*streamRecorder, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.ServeSSE(rec, req, sub, heartbeat)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rec, cancel, done
}

func TestServeSSEWritesTopicFrames(t *testing.T) {
	hub := NewHub(mustTestLogger(t), nil, 0)
	retro := uuid.New()
	sub := hub.Subscribe(context.Background(), retro)
	rec, cancel, done := serve(t, hub, sub, time.Hour)

	rec.waitFor(t, ": subscribed")
	hub.Publish(context.Background(), NewStepChanged(retro, domain.StepGrouping))
	rec.waitFor(t, "event: step_changed\ndata: ")
	rec.waitFor(t, `"step":"Grouping"`)

	cancel()
	<-done
	if got := rec.header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	if strings.Contains(rec.String(), "event: lagged") {
		t.Fatalf("no lag expected:\n%s", rec.String())
	}
}

func TestServeSSEHeartbeat(t *testing.T) {
	hub := NewHub(mustTestLogger(t), nil, 0)
	sub := hub.Subscribe(context.Background(), uuid.New())
	rec, _, _ := serve(t, hub, sub, 10*time.Millisecond)
	rec.waitFor(t, ": ping\n\n")
}

func TestServeSSEReportsLag(t *testing.T) {
	hub := NewHub(mustTestLogger(t), nil, 1)
	retro := uuid.New()
	sub := hub.Subscribe(context.Background(), retro, TopicCardAdded)
	for i := 0; i < 5; i++ {
		hub.Publish(context.Background(), NewCardAdded(retro, uuid.New(), domain.Card{ID: uuid.New()}))
	}
	if sub.Missed() == 0 {
		t.Fatalf("expected dropped events before streaming")
	}

	rec, _, _ := serve(t, hub, sub, time.Hour)
	rec.waitFor(t, "event: lagged\ndata: {\"missed\":")
	rec.waitFor(t, "event: card_added")
}

func TestServeSSEEndsWithSubscription(t *testing.T) {
	hub := NewHub(mustTestLogger(t), nil, 0)
	sub := hub.Subscribe(context.Background(), uuid.New())
	_, _, done := serve(t, hub, sub, time.Hour)
	hub.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("stream did not end after hub close")
	}
}
