package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNotifier_Send_EmptyURLIsNoOp(t *testing.T) {
	n := NewNotifier("")
	id, err := n.Send(context.Background(), Message{SignalID: 1, Kind: "created"})
	if err != nil {
		t.Fatalf("expected no error with an unconfigured webhook, got %v", err)
	}
	if id != "" {
		t.Errorf("expected empty message id, got %q", id)
	}
}

func TestNotifier_Send_ReturnsEchoedMessageID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("server failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deliverResponse{MessageID: "msg-123"})
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	id, err := n.Send(context.Background(), Message{SignalID: 7, Kind: "created", Instrument: "BTCUSDT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-123" {
		t.Errorf("message id = %q, want %q", id, "msg-123")
	}
}

func TestNotifier_Send_ToleratesNonJSONEcho(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	id, err := n.Send(context.Background(), Message{SignalID: 1, Kind: "created"})
	if err != nil {
		t.Fatalf("expected a non-JSON 2xx response to be tolerated, got %v", err)
	}
	if id != "" {
		t.Errorf("expected empty message id for a non-echoing endpoint, got %q", id)
	}
}

func TestNotifier_Send_ErrorsOn4xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewNotifier(server.URL)
	if _, err := n.Send(context.Background(), Message{SignalID: 1, Kind: "created"}); err == nil {
		t.Fatal("expected an error for a 4xx response")
	}
}

func TestNotifier_Dispatch_InvokesOnDeliveredOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deliverResponse{MessageID: "msg-456"})
	}))
	defer server.Close()

	n := NewNotifier(server.URL)

	var mu sync.Mutex
	var gotID string
	done := make(chan struct{})
	n.Dispatch(Message{SignalID: 1, Kind: "created"}, func(messageID string) {
		mu.Lock()
		gotID = messageID
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for onDelivered callback")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotID != "msg-456" {
		t.Errorf("onDelivered id = %q, want %q", gotID, "msg-456")
	}
}
