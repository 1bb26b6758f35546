package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The hub runs no background goroutines; leaks here mean a test
	// left a consumer hanging.
	goleak.VerifyTestMain(m)
}

func recv(t *testing.T, sub *Subscription) string {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		if !ok {
			t.Fatal("subscription completed while waiting for message")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return ""
}

func TestHub_New(t *testing.T) {
	h := New()

	if h == nil {
		t.Fatal("New() returned nil")
	}
	if h.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", h.capacity, DefaultCapacity)
	}
}

func TestHub_NewWithCapacity_InvalidValue(t *testing.T) {
	h := NewWithCapacity(-1)

	if h.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want default %d", h.capacity, DefaultCapacity)
	}
}

func TestHub_SubscribePublish(t *testing.T) {
	h := New()

	sub := h.Subscribe("news")
	defer h.Unsubscribe("news", sub)

	if err := h.Publish("news", "hello"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := recv(t, sub); got != "hello" {
		t.Errorf("received %q, want %q", got, "hello")
	}
}

func TestHub_FanOut(t *testing.T) {
	h := New()

	s1 := h.Subscribe("chat")
	s2 := h.Subscribe("chat")
	s3 := h.Subscribe("other")
	defer h.Unsubscribe("chat", s1)
	defer h.Unsubscribe("chat", s2)
	defer h.Unsubscribe("other", s3)

	if err := h.Publish("chat", "hi"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := recv(t, s1); got != "hi" {
		t.Errorf("s1 received %q, want %q", got, "hi")
	}
	if got := recv(t, s2); got != "hi" {
		t.Errorf("s2 received %q, want %q", got, "hi")
	}

	select {
	case msg := <-s3.Messages():
		t.Errorf("s3 on channel %q received unexpected message %q", "other", msg)
	default:
	}
}

func TestHub_PublishToUnknownChannel(t *testing.T) {
	h := New()

	if err := h.Publish("nobody-home", "msg"); err != nil {
		t.Errorf("Publish() to unknown channel error = %v", err)
	}
}

func TestHub_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := NewWithCapacity(10)

	slow := h.Subscribe("feed")
	fast := h.Subscribe("feed")
	defer h.Unsubscribe("feed", slow)
	defer h.Unsubscribe("feed", fast)

	// Publish far more than either queue's capacity without draining.
	// Publish must neither stall nor fail.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = h.Publish("feed", fmt.Sprintf("%d", i))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// Both subscribers hold the most recent messages despite the
	// backlog: drop-oldest kept them live.
	for want := 90; want < 100; want++ {
		if got := recv(t, fast); got != fmt.Sprintf("%d", want) {
			t.Fatalf("fast drained %q, want %q", got, fmt.Sprintf("%d", want))
		}
	}
}

func TestHub_DropOldest(t *testing.T) {
	h := New()

	sub := h.Subscribe("feed")
	defer h.Unsubscribe("feed", sub)

	// Publish 105 messages into a capacity-100 queue without draining.
	for i := 0; i < 105; i++ {
		if err := h.Publish("feed", fmt.Sprintf("%d", i)); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
	}

	// Draining yields the last 100 messages, in order.
	for want := 5; want < 105; want++ {
		if got := recv(t, sub); got != fmt.Sprintf("%d", want) {
			t.Fatalf("drained %q, want %q", got, fmt.Sprintf("%d", want))
		}
	}

	select {
	case msg := <-sub.Messages():
		t.Errorf("unexpected extra message %q", msg)
	default:
	}
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h := New()

	s1 := h.Subscribe("chat")
	s2 := h.Subscribe("chat")
	defer h.Unsubscribe("chat", s2)

	h.Unsubscribe("chat", s1)
	h.Unsubscribe("chat", s1) // No-op; must not remove a different subscriber.

	if got := h.SubscriberCount("chat"); got != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", got)
	}

	if err := h.Publish("chat", "still here"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := recv(t, s2); got != "still here" {
		t.Errorf("s2 received %q, want %q", got, "still here")
	}
}

func TestHub_PublishAfterUnsubscribe(t *testing.T) {
	h := New()

	sub := h.Subscribe("jobs")
	h.Unsubscribe("jobs", sub)

	if err := h.Publish("jobs", "orphan"); err != nil {
		t.Fatalf("Publish() after unsubscribe error = %v", err)
	}

	// A fresh subscriber receives subsequent publishes normally.
	fresh := h.Subscribe("jobs")
	defer h.Unsubscribe("jobs", fresh)

	if err := h.Publish("jobs", "fresh start"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := recv(t, fresh); got != "fresh start" {
		t.Errorf("received %q, want %q", got, "fresh start")
	}
}

func TestHub_DeadWriteEndPrunedOnPublish(t *testing.T) {
	h := New()

	dead := h.Subscribe("metrics")
	live := h.Subscribe("metrics")
	defer h.Unsubscribe("metrics", live)

	// Complete the write-end without telling the hub, simulating a
	// consumer that went away.
	dead.Close()

	if got := h.SubscriberCount("metrics"); got != 2 {
		t.Fatalf("SubscriberCount() before publish = %d, want 2", got)
	}

	if err := h.Publish("metrics", "tick"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := h.SubscriberCount("metrics"); got != 1 {
		t.Errorf("SubscriberCount() after publish = %d, want 1", got)
	}
	if got := recv(t, live); got != "tick" {
		t.Errorf("live subscriber received %q, want %q", got, "tick")
	}
}

func TestHub_ChannelPrunedWhenLastSubscriberLeaves(t *testing.T) {
	h := New()

	sub := h.Subscribe("ephemeral")
	if got := h.ChannelCount(); got != 1 {
		t.Fatalf("ChannelCount() = %d, want 1", got)
	}

	h.Unsubscribe("ephemeral", sub)

	if got := h.ChannelCount(); got != 0 {
		t.Errorf("ChannelCount() after unsubscribe = %d, want 0", got)
	}
	if _, ok := h.channels.Load("ephemeral"); ok {
		t.Error("channel entry should be pruned after last unsubscribe")
	}
}

func TestHub_PruneDoesNotLoseConcurrentSubscribe(t *testing.T) {
	h := New()

	// Repeatedly race the last unsubscribe of a channel against a new
	// subscribe to the same channel. The new subscription must survive.
	for i := 0; i < 200; i++ {
		old := h.Subscribe("contended")

		var wg sync.WaitGroup
		var fresh *Subscription

		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Unsubscribe("contended", old)
		}()
		go func() {
			defer wg.Done()
			fresh = h.Subscribe("contended")
		}()
		wg.Wait()

		if got := h.SubscriberCount("contended"); got != 1 {
			t.Fatalf("iteration %d: SubscriberCount() = %d, want 1", i, got)
		}

		if err := h.Publish("contended", "ping"); err != nil {
			t.Fatalf("iteration %d: Publish() error = %v", i, err)
		}
		if got := recv(t, fresh); got != "ping" {
			t.Fatalf("iteration %d: received %q, want %q", i, got, "ping")
		}

		h.Unsubscribe("contended", fresh)
	}
}

func TestHub_ConcurrentPublishersSingleChannel(t *testing.T) {
	h := NewWithCapacity(1000)

	sub := h.Subscribe("busy")
	defer h.Unsubscribe("busy", sub)

	const publishers = 8
	const perPublisher = 50

	var wg sync.WaitGroup
	wg.Add(publishers)
	for p := 0; p < publishers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				_ = h.Publish("busy", fmt.Sprintf("%d-%d", p, i))
			}
		}(p)
	}
	wg.Wait()

	// Capacity exceeds total volume, so every message arrives and each
	// publisher's own sequence stays in order.
	next := make(map[string]int)
	for i := 0; i < publishers*perPublisher; i++ {
		msg := recv(t, sub)
		var p, n int
		if _, err := fmt.Sscanf(msg, "%d-%d", &p, &n); err != nil {
			t.Fatalf("unexpected message %q", msg)
		}
		key := fmt.Sprintf("%d", p)
		if n != next[key] {
			t.Fatalf("publisher %d out of order: got %d, want %d", p, n, next[key])
		}
		next[key]++
	}
}

func TestHub_ConcurrentSubscribeUnsubscribeAcrossChannels(t *testing.T) {
	h := New()

	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		channel := fmt.Sprintf("ch-%d", c)
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sub := h.Subscribe(channel)
				_ = h.Publish(channel, "x")
				h.Unsubscribe(channel, sub)
			}
		}(channel)
	}
	wg.Wait()

	if got := h.ChannelCount(); got != 0 {
		t.Errorf("ChannelCount() after churn = %d, want 0", got)
	}
}

func TestHub_EmptyChannelNameIsDistinct(t *testing.T) {
	h := New()

	empty := h.Subscribe("")
	named := h.Subscribe("named")
	defer h.Unsubscribe("", empty)
	defer h.Unsubscribe("named", named)

	if err := h.Publish("", "to-empty"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := recv(t, empty); got != "to-empty" {
		t.Errorf("empty-channel subscriber received %q, want %q", got, "to-empty")
	}
	select {
	case msg := <-named.Messages():
		t.Errorf("named subscriber received unexpected message %q", msg)
	default:
	}
}

func TestHub_Channels(t *testing.T) {
	h := New()

	a := h.Subscribe("alpha")
	b := h.Subscribe("beta")
	defer h.Unsubscribe("alpha", a)
	defer h.Unsubscribe("beta", b)

	names := h.Channels()
	if len(names) != 2 {
		t.Fatalf("Channels() = %v, want 2 entries", names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["alpha"] || !seen["beta"] {
		t.Errorf("Channels() = %v, want alpha and beta", names)
	}
}
