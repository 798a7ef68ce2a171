package server

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Broker fans out server events (document uploads, completed queries) to
// SSE subscribers on /v1/events.
type Broker struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	bufferSize  int
}

// NewBroker creates an SSE broker. bufferSize is the per-subscriber channel
// buffer; a non-positive value gets a sane default.
func NewBroker(logger *slog.Logger, bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broker{
		logger:      logger,
		subscribers: make(map[chan []byte]struct{}),
		bufferSize:  bufferSize,
	}
}

// Publish broadcasts one event to every subscriber. The payload is
// marshalled to JSON; a marshal failure drops the event with a log line,
// never an error to the publisher.
func (b *Broker) Publish(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("broker: marshal event", "event", event, "error", err)
		return
	}
	b.broadcast(formatSSE(event, string(data)))
}

// Subscribe returns a channel that receives SSE-formatted events.
// The caller must call Unsubscribe when done.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, b.bufferSize)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// broadcast sends an event to all subscribers. Slow subscribers with a full
// buffer are skipped (their event is dropped) to prevent one slow client
// from blocking all others.
func (b *Broker) broadcast(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// formatSSE formats an event as a Server-Sent Events message:
// "event: <type>\ndata: <payload>\n\n".
func formatSSE(eventType, data string) []byte {
	return []byte("event: " + eventType + "\ndata: " + data + "\n\n")
}
