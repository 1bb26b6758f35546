// Package hub implements the stream hub that fans messages out to
// per-channel subscribers.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub owns the channel registry and the publish/subscribe protocol.
// Publishing never blocks on a slow or dead consumer, and resources
// for abandoned subscribers are reclaimed opportunistically.
//
// There is no global hub lock: the registry and the reverse index are
// concurrent maps, and each channel's subscriber set carries its own
// mutex, so traffic on unrelated channels never serializes.
type Hub struct {
	capacity int

	// channels maps a channel name to its live subscriber set.
	channels sync.Map // string -> *subscriberSet

	// index maps a subscription id back to its subscription, so that
	// publish-time cleanup can drop the matching entry without the
	// caller re-supplying internal state.
	index sync.Map // string -> *Subscription
}

// New creates a hub with the default per-subscription queue capacity.
func New() *Hub {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a hub whose subscriptions buffer up to
// capacity unconsumed messages each.
func NewWithCapacity(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{capacity: capacity}
}

// Subscribe registers a new subscriber under channel and returns the
// read-end of its queue. It never blocks. The channel entry is created
// on first subscribe; an empty channel name is a valid distinct channel.
func (h *Hub) Subscribe(channel string) *Subscription {
	sub := newSubscription(channel, h.capacity)

	for {
		v, _ := h.channels.LoadOrStore(channel, newSubscriberSet())
		set := v.(*subscriberSet)
		if set.add(sub) {
			break
		}
		// Lost a race with pruning: the loaded set is already dead.
		// Drop the stale entry and retry with a fresh one.
		h.channels.CompareAndDelete(channel, v)
	}

	h.index.Store(sub.id, sub)

	log.Debug().
		Str("channel", channel).
		Str("subscription_id", sub.id).
		Msg("subscriber registered")

	return sub
}

// Publish fans message out to every live subscriber of channel. Each
// delivery is an independent non-blocking write; a full queue resolves
// by drop-oldest eviction, and a completed write-end is pruned from
// the registry without affecting delivery to the remaining
// subscribers. Per-subscriber faults are absorbed here and never
// surfaced to the publisher; the error return is reserved for
// hub-level failures.
func (h *Hub) Publish(channel, message string) error {
	v, ok := h.channels.Load(channel)
	if !ok {
		return nil
	}
	set := v.(*subscriberSet)

	// Copy-then-iterate so fan-out never walks a map being mutated by
	// concurrent subscribes.
	for _, sub := range set.snapshot() {
		if err := sub.tryWrite(message); err != nil {
			log.Warn().
				Str("channel", channel).
				Str("subscription_id", sub.id).
				Err(err).
				Msg("dropping dead subscriber")
			h.drop(channel, set, sub)
		}
	}

	log.Trace().Str("channel", channel).Msg("message published")
	return nil
}

// Unsubscribe completes sub and removes it from channel's registry
// entry and the reverse index. Idempotent: unsubscribing twice, or
// after publish-time cleanup already pruned the subscription, is a
// no-op.
func (h *Hub) Unsubscribe(channel string, sub *Subscription) {
	if sub == nil {
		return
	}
	v, ok := h.channels.Load(channel)
	if !ok {
		sub.Close()
		h.index.Delete(sub.id)
		return
	}
	h.drop(channel, v.(*subscriberSet), sub)

	log.Debug().
		Str("channel", channel).
		Str("subscription_id", sub.id).
		Msg("subscriber unregistered")
}

// drop completes sub and removes it from both maps, pruning the
// channel entry when the last subscriber leaves. Safe under races
// between Unsubscribe and publish-time cleanup: every step is
// idempotent.
func (h *Hub) drop(channel string, set *subscriberSet, sub *Subscription) {
	sub.Close()
	h.index.Delete(sub.id)

	if _, emptied := set.remove(sub.id); emptied {
		// Best-effort prune. CompareAndDelete only removes the entry if
		// it still holds this (now dead) set, so a concurrent Subscribe
		// that already replaced it is never lost.
		h.channels.CompareAndDelete(channel, set)
	}
}

// ChannelCount returns the number of channels with live subscribers.
func (h *Hub) ChannelCount() int {
	n := 0
	h.channels.Range(func(_, v any) bool {
		if v.(*subscriberSet).len() > 0 {
			n++
		}
		return true
	})
	return n
}

// SubscriberCount returns the number of live subscribers on channel.
func (h *Hub) SubscriberCount(channel string) int {
	v, ok := h.channels.Load(channel)
	if !ok {
		return 0
	}
	return v.(*subscriberSet).len()
}

// Channels returns the names of channels with live subscribers.
func (h *Hub) Channels() []string {
	var names []string
	h.channels.Range(func(k, v any) bool {
		if v.(*subscriberSet).len() > 0 {
			names = append(names, k.(string))
		}
		return true
	})
	return names
}

// subscriberSet is the registry entry for a single channel.
type subscriberSet struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
	dead bool
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[string]*Subscription)}
}

// add registers sub unless the set has already been emptied and marked
// for pruning, in which case the caller must retry with a fresh set.
func (ss *subscriberSet) add(sub *Subscription) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.dead {
		return false
	}
	ss.subs[sub.id] = sub
	return true
}

// remove deletes the subscription with the given id and reports whether
// the set emptied. An emptied set is marked dead so a Subscribe racing
// with pruning re-creates the channel entry instead of joining one
// about to disappear.
func (ss *subscriberSet) remove(id string) (removed, emptied bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, ok := ss.subs[id]; !ok {
		return false, false
	}
	delete(ss.subs, id)
	if len(ss.subs) == 0 {
		ss.dead = true
		return true, true
	}
	return true, false
}

// snapshot copies the current subscriber list for iteration.
func (ss *subscriberSet) snapshot() []*Subscription {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]*Subscription, 0, len(ss.subs))
	for _, sub := range ss.subs {
		out = append(out, sub)
	}
	return out
}

func (ss *subscriberSet) len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.subs)
}
