// Package testutil provides shared test utilities and mocks for
// razorwire tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/codewired/razorwire/internal/domain/ports"
	"github.com/codewired/razorwire/internal/hub"
)

// PublishedMessage records one publish call seen by a RecordingHub.
type PublishedMessage struct {
	Channel string
	Message string
}

// RecordingHub wraps a real hub and records every publish, so tests
// can assert on producer behavior while still exercising real
// subscription delivery.
type RecordingHub struct {
	*hub.Hub

	mu        sync.Mutex
	published []PublishedMessage
}

// NewRecordingHub creates a RecordingHub over a fresh hub.
func NewRecordingHub() *RecordingHub {
	return &RecordingHub{Hub: hub.New()}
}

// Publish records the call and forwards it to the wrapped hub.
func (r *RecordingHub) Publish(channel, message string) error {
	r.mu.Lock()
	r.published = append(r.published, PublishedMessage{Channel: channel, Message: message})
	r.mu.Unlock()
	return r.Hub.Publish(channel, message)
}

// Published returns all recorded publishes.
func (r *RecordingHub) Published() []PublishedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PublishedMessage, len(r.published))
	copy(out, r.published)
	return out
}

// PublishedTo returns the messages recorded for one channel.
func (r *RecordingHub) PublishedTo(channel string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, p := range r.published {
		if p.Channel == channel {
			out = append(out, p.Message)
		}
	}
	return out
}

// PublishCount returns the number of recorded publishes.
func (r *RecordingHub) PublishCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published)
}

// Ensure RecordingHub implements ports.StreamHub.
var _ ports.StreamHub = (*RecordingHub)(nil)

// Receive reads one message from sub or fails the test after timeout.
func Receive(t *testing.T, sub *hub.Subscription, timeout time.Duration) string {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		if !ok {
			t.Fatalf("subscription completed while waiting for message")
		}
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for message", timeout)
	}
	return ""
}

// ExpectNoMessage fails the test if sub yields a message within wait.
func ExpectNoMessage(t *testing.T, sub *hub.Subscription, wait time.Duration) {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		if ok {
			t.Fatalf("unexpected message: %q", msg)
		}
	case <-time.After(wait):
	}
}

// WaitFor polls cond until it returns true or the deadline passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
