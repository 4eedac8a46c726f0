package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"relaycloud/internal/auth"
	"relaycloud/internal/relay/application"
	"relaycloud/internal/relay/infrastructure/docstore"
	"relaycloud/internal/store/memory"
)

// sseRecorder is a flushable response writer safe for concurrent reads
// while the stream goroutine is still writing.
type sseRecorder struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	header  http.Header
	flushed chan struct{}
	once    sync.Once
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{header: make(http.Header), flushed: make(chan struct{})}
}

func (r *sseRecorder) Header() http.Header { return r.header }

func (r *sseRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *sseRecorder) WriteHeader(int) {}

func (r *sseRecorder) Flush() {
	r.once.Do(func() { close(r.flushed) })
}

func (r *sseRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func waitForBody(t *testing.T, rec *sseRecorder, marker string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(rec.body(), marker) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stream never wrote %q, body: %q", marker, rec.body())
}

func newStreamFixture(t *testing.T) (*StreamHandler, *memory.Store, *auth.Provider, string) {
	t.Helper()
	provider, err := auth.NewProvider([]byte("stream-test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if _, err := provider.Register("pat@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, identity, err := provider.Login("pat@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	docs := memory.New()
	handler, err := NewStreamHandler(docs, provider, NewBroker(16))
	if err != nil {
		t.Fatalf("new stream handler: %v", err)
	}
	return handler, docs, provider, identity.UserID
}

func TestStream_SnapshotEvents(t *testing.T) {
	handler, docs, _, userID := newStreamFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relays/stream", nil)
	req = req.WithContext(auth.WithIdentity(ctx, auth.Identity{UserID: userID}))

	rec := newSSERecorder()
	served := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(served)
	}()

	waitForBody(t, rec, "event: ready")
	waitForBody(t, rec, "event: snapshot")

	repo, err := docstore.New(docs, userID)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	if err := repo.Create(context.Background(), 1, "GARDEN PUMP"); err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForBody(t, rec, "GARDEN PUMP")

	cancel()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after context cancel")
	}
}

func TestStream_SignOutEndsStream(t *testing.T) {
	handler, _, provider, userID := newStreamFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relays/stream", nil)
	req = req.WithContext(auth.WithIdentity(ctx, auth.Identity{UserID: userID}))

	rec := newSSERecorder()
	served := make(chan struct{})
	go func() {
		handler.ServeHTTP(rec, req)
		close(served)
	}()
	waitForBody(t, rec, "event: ready")

	token, _, err := provider.Login("pat@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := provider.SignOut(token); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after sign-out")
	}
	if !strings.Contains(rec.body(), "event: signout") {
		t.Fatalf("expected signout event, body: %q", rec.body())
	}
}

func TestStream_Unauthenticated(t *testing.T) {
	handler, _, _, _ := newStreamFixture(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/relays/stream", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBroker_NotificationsReachSubscribers(t *testing.T) {
	broker := NewBroker(4)
	ch := broker.subscribe("user-1")
	defer broker.unsubscribe("user-1", ch)

	notifier := broker.NotifierFor("user-1")
	notifier.Notify(context.Background(), application.Notification{
		Level:   application.NotificationSuccess,
		Device:  "GARDEN PUMP",
		Message: "GARDEN PUMP turned ON.",
	})

	select {
	case evt := <-ch:
		if evt.name != "notification" || !strings.Contains(string(evt.payload), "GARDEN PUMP") {
			t.Fatalf("unexpected event: %s %s", evt.name, evt.payload)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestBroker_ScopedToUser(t *testing.T) {
	broker := NewBroker(4)
	ch := broker.subscribe("user-2")
	defer broker.unsubscribe("user-2", ch)

	broker.NotifierFor("user-1").Notify(context.Background(), application.Notification{
		Level:   application.NotificationError,
		Message: "Error fetching devices. Please try again.",
	})

	select {
	case evt := <-ch:
		t.Fatalf("event leaked across users: %s %s", evt.name, evt.payload)
	case <-time.After(50 * time.Millisecond):
	}
}
