// Package notify delivers signal lifecycle notifications to the
// external operator channel (§6 "Outbound notifier") and decouples
// delivery from the hot path via a NATS publish queue, grounded on the
// teacher's webhook-delivery idiom (notifications/webhook_manager.go)
// but generalized to the single configured channel the spec describes,
// rather than a multi-webhook fan-out.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Notifier delivers a message to the configured webhook URL, returning a
// notification id for later reply-threading. Failures are logged and do
// not roll back the caller's signal (§4.9, §7 "User-visible failure
// behavior").
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// NewNotifier builds a notifier with a 10 s delivery timeout (§5
// "Cancellation and timeouts").
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Message is the wire payload sent to the operator channel.
type Message struct {
	SignalID    int64                  `json:"signal_id"`
	Kind        string                 `json:"kind"` // "created", "tp1_partial", "closed"
	Instrument  string                 `json:"instrument"`
	Direction   string                 `json:"direction"`
	Text        string                 `json:"text"`
	ReplyTo     string                 `json:"reply_to,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
}

// deliverResponse is the minimal shape the channel echoes back.
type deliverResponse struct {
	MessageID string `json:"message_id"`
}

// Send posts msg to the webhook and returns the channel's message id.
// Callers should invoke this as a fire-and-forget goroutine; delivery
// failure must never block or roll back signal persistence.
func (n *Notifier) Send(ctx context.Context, msg Message) (string, error) {
	if n.webhookURL == "" {
		return "", nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("notification channel returned status %d", resp.StatusCode)
	}

	var decoded deliverResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		// Channel accepted the message but didn't echo an id; tolerate it,
		// duplicates are detectable by signal id regardless (§7).
		return "", nil
	}
	return decoded.MessageID, nil
}

// Dispatch fires Send in the background and logs any error, per the
// spec's fire-and-forget delivery contract.
func (n *Notifier) Dispatch(msg Message, onDelivered func(messageID string)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		id, err := n.Send(ctx, msg)
		if err != nil {
			log.Printf("⚠️  notification delivery failed for signal %d: %v", msg.SignalID, err)
			return
		}
		if onDelivered != nil && id != "" {
			onDelivered(id)
		}
	}()
}
