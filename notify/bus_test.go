package notify

import "testing"

func TestNewBus_EmptyURLIsNilSafe(t *testing.T) {
	bus, err := NewBus("", "")
	if err != nil {
		t.Fatalf("unexpected error for an unconfigured bus: %v", err)
	}
	// Publish/Subscribe/Close must all be safe no-ops with no connection.
	bus.Publish(Message{SignalID: 1, Kind: "created"})

	unsub, err := bus.Subscribe("workers", func(Message) {})
	if err != nil {
		t.Fatalf("unexpected error subscribing on a no-op bus: %v", err)
	}
	unsub()
	bus.Close()
}

func TestNilBus_MethodsAreSafe(t *testing.T) {
	var bus *Bus
	bus.Publish(Message{SignalID: 1})
	bus.Close()
}
