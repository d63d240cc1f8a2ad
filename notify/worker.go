package notify

import "log"

// Worker is the single subscriber goroutine that drains the bus and
// performs actual HTTP delivery, so the Emitter and Fast Tracker never
// call the notifier directly (§9 "Notifier decoupling", §6.1). It is the
// only place "closure persistence must not block on the notifier"
// becomes structural rather than a convention.
type Worker struct {
	bus      *Bus
	notifier *Notifier
	onDelivered func(signalID int64, messageID string)
}

// NewWorker builds a worker. onDelivered is invoked with the delivered
// message id so the caller can persist it onto the signal row for later
// reply-threading; it may be nil.
func NewWorker(bus *Bus, notifier *Notifier, onDelivered func(signalID int64, messageID string)) *Worker {
	return &Worker{bus: bus, notifier: notifier, onDelivered: onDelivered}
}

// Start subscribes to the bus and processes messages until unsubscribed.
// Returns the unsubscribe function.
func (w *Worker) Start(queueGroup string) (func(), error) {
	return w.bus.Subscribe(queueGroup, func(msg Message) {
		kind := msg.Kind
		w.notifier.Dispatch(msg, func(messageID string) {
			// Only the creation notification establishes the thread id;
			// partial/closure deliveries reply onto it via ReplyTo.
			if kind == "created" && w.onDelivered != nil {
				w.onDelivered(msg.SignalID, messageID)
			}
		})
		if kind != "created" {
			log.Printf("notify worker: delivered %s update for signal %d", kind, msg.SignalID)
		}
	})
}
