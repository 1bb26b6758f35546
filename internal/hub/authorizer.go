package hub

import (
	"context"
	"strings"
	"sync"
)

// PatternAuthorizer permits subscriptions whose channel matches one of
// a set of patterns. A pattern names a channel exactly, or ends in "*"
// to match a prefix ("jobs.*" allows "jobs.build" and "jobs.deploy").
// An empty pattern list permits every channel.
type PatternAuthorizer struct {
	mu       sync.RWMutex
	patterns []string
}

// NewPatternAuthorizer creates an authorizer with the given patterns.
func NewPatternAuthorizer(patterns ...string) *PatternAuthorizer {
	return &PatternAuthorizer{patterns: patterns}
}

// CanSubscribe reports if channel matches the configured patterns.
func (a *PatternAuthorizer) CanSubscribe(_ context.Context, channel string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.patterns) == 0 {
		return true
	}
	for _, p := range a.patterns {
		if matchChannel(p, channel) {
			return true
		}
	}
	return false
}

// Allow adds a pattern to the authorizer.
func (a *PatternAuthorizer) Allow(pattern string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.patterns = append(a.patterns, pattern)
}

// Patterns returns a copy of the configured patterns.
func (a *PatternAuthorizer) Patterns() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.patterns))
	copy(out, a.patterns)
	return out
}

func matchChannel(pattern, channel string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}
