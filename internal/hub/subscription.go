package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/codewired/razorwire/internal/domain"
)

// DefaultCapacity is the per-subscription bound on unconsumed messages.
const DefaultCapacity = 100

// Subscription is the read-end of a per-subscriber bounded queue,
// returned by Subscribe and used as the key for Unsubscribe.
//
// The queue is drop-oldest: when it is full, the oldest buffered
// message is evicted to admit the newest, so a slow consumer may miss
// interior messages but never sees them out of order.
//
// Lifecycle: Active until Close (via Unsubscribe, or directly by the
// consumer, or by the hub when it detects a dead write-end during
// publish), then Completed — terminal. After completion the consumer
// drains any buffered messages and Messages() is closed.
type Subscription struct {
	id      string
	channel string

	msgs chan string
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newSubscription(channel string, capacity int) *Subscription {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Subscription{
		id:      uuid.New().String(),
		channel: channel,
		msgs:    make(chan string, capacity),
		done:    make(chan struct{}),
	}
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Channel returns the channel this subscription was created under.
func (s *Subscription) Channel() string {
	return s.channel
}

// Messages returns the receive side of the queue. The channel is
// closed once the subscription completes; buffered messages remain
// readable until drained.
func (s *Subscription) Messages() <-chan string {
	return s.msgs
}

// Done returns a channel that's closed when the subscription completes.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// IsClosed returns true if the subscription has completed.
func (s *Subscription) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close completes the subscription. Idempotent. The hub prunes its
// registry entries on the next publish to the channel; calling
// Unsubscribe instead removes them immediately.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.msgs)
}

// tryWrite enqueues a message without blocking. A full queue evicts its
// oldest entry to admit the newest, so overflow never fails a write;
// the only error is ErrSubscriberClosed for a completed write-end.
func (s *Subscription) tryWrite(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSubscriberClosed
	}

	for {
		select {
		case s.msgs <- message:
			return nil
		default:
		}

		// Queue full: drop the oldest buffered message and retry.
		// The mutex serializes writers, so the retry terminates.
		select {
		case <-s.msgs:
		default:
		}
	}
}
