package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestWorker_OnDelivered_RecordsCreatedMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deliverResponse{MessageID: "msg-1"})
	}))
	defer server.Close()

	bus := &Bus{}
	notifier := NewNotifier(server.URL)

	var mu sync.Mutex
	delivered := map[int64]string{}
	done := make(chan struct{}, 1)

	w := NewWorker(bus, notifier, func(signalID int64, messageID string) {
		mu.Lock()
		delivered[signalID] = messageID
		mu.Unlock()
		done <- struct{}{}
	})

	// Bus is unconfigured (nil conn), so Subscribe/Publish are no-ops;
	// drive the dispatch/onDelivered wiring directly the way Start's
	// subscription handler would.
	unsub, err := w.Start("workers")
	if err != nil {
		t.Fatalf("unexpected error starting worker: %v", err)
	}
	defer unsub()

	w.notifier.Dispatch(Message{SignalID: 1, Kind: "created"}, func(messageID string) {
		w.onDelivered(1, messageID)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if delivered[1] != "msg-1" {
		t.Errorf("delivered[1] = %q, want %q", delivered[1], "msg-1")
	}
}

func TestWorker_Start_NilBusReturnsNoOpUnsubscribe(t *testing.T) {
	bus := &Bus{}
	notifier := NewNotifier("")
	w := NewWorker(bus, notifier, nil)

	unsub, err := w.Start("workers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unsub == nil {
		t.Fatal("expected a non-nil unsubscribe function even for a no-op bus")
	}
	unsub()
}
