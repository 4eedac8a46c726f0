package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"relaycloud/internal/auth"
	"relaycloud/internal/observability/metrics"
	"relaycloud/internal/relay/application"
	relay "relaycloud/internal/relay/domain"
	"relaycloud/internal/relay/infrastructure/docstore"
	"relaycloud/internal/store"
)

type event struct {
	name    string
	payload []byte
}

// Broker fans per-user events out to that user's open stream connections.
// It also serves as the push sink for workflow notifications, so toasts
// reach every screen the user has open.
type Broker struct {
	mu      sync.Mutex
	clients map[string]map[chan event]struct{}
	buffer  int
}

// NewBroker constructs a broker. The buffer bounds each client channel;
// a slow client drops events rather than blocking writers.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{clients: make(map[string]map[chan event]struct{}), buffer: buffer}
}

func (b *Broker) subscribe(userID string) chan event {
	ch := make(chan event, b.buffer)
	b.mu.Lock()
	if b.clients[userID] == nil {
		b.clients[userID] = make(map[chan event]struct{})
	}
	b.clients[userID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) unsubscribe(userID string, ch chan event) {
	b.mu.Lock()
	if set, ok := b.clients[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.clients, userID)
		}
	}
	b.mu.Unlock()
}

func (b *Broker) publish(userID string, evt event) {
	b.mu.Lock()
	targets := make([]chan event, 0, len(b.clients[userID]))
	for ch := range b.clients[userID] {
		targets = append(targets, ch)
	}
	b.mu.Unlock()
	for _, ch := range targets {
		select {
		case ch <- evt:
		default:
		}
	}
}

// NotifierFor returns a notifier that pushes a user's workflow
// notifications to their open streams.
func (b *Broker) NotifierFor(userID string) application.Notifier {
	return notifierFunc(func(_ context.Context, notification application.Notification) {
		payload, err := json.Marshal(notification)
		if err != nil {
			return
		}
		b.publish(userID, event{name: "notification", payload: payload})
	})
}

type notifierFunc func(ctx context.Context, notification application.Notification)

func (f notifierFunc) Notify(ctx context.Context, notification application.Notification) {
	f(ctx, notification)
}

// StreamHandler serves GET /api/v1/relays/stream: a live SSE feed of the
// user's collection plus their workflow notifications. The stream is the
// sole source of the UI's toggle positions.
type StreamHandler struct {
	docs     store.Store
	provider *auth.Provider
	broker   *Broker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(docs store.Store, provider *auth.Provider, broker *Broker) (*StreamHandler, error) {
	if docs == nil {
		return nil, errors.New("stream handler: nil store")
	}
	if provider == nil {
		return nil, errors.New("stream handler: nil provider")
	}
	if broker == nil {
		return nil, errors.New("stream handler: nil broker")
	}
	return &StreamHandler{docs: docs, provider: provider, broker: broker}, nil
}

// ServeHTTP handles the SSE stream. The connection ends when the client
// goes away or the session is revoked; revocation additionally emits a
// signout event so the screen redirects instead of silently freezing.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	repo, err := docstore.New(h.docs, identity.UserID)
	if err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.subscribe(identity.UserID)
	defer h.broker.unsubscribe(identity.UserID, ch)

	// Each connection holds its own subscription; closing one stream
	// never affects another.
	unsubscribe, err := repo.Subscribe(r.Context(), func(collection relay.Collection) {
		payload, err := json.Marshal(collection)
		if err != nil {
			return
		}
		select {
		case ch <- event{name: "snapshot", payload: payload}:
		default:
		}
	})
	if err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	defer unsubscribe()

	signedOut := make(chan struct{})
	var signOutOnce sync.Once
	cancelAuthWatch := h.provider.OnAuthStateChanged(func(changed auth.Identity, active bool) {
		if changed.UserID == identity.UserID && !active {
			signOutOnce.Do(func() { close(signedOut) })
		}
	})
	defer cancelAuthWatch()

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	done := r.Context().Done()
	for {
		select {
		case evt := <-ch:
			_, _ = w.Write([]byte("event: " + evt.name + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(evt.payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-signedOut:
			_, _ = w.Write([]byte("event: signout\ndata: {}\n\n"))
			flusher.Flush()
			return
		case <-done:
			return
		}
	}
}
