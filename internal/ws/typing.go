package ws

import (
	"sort"
	"sync"
	"time"
)

// ConversationKey identifies a channel or a direct pair for typing state.
type ConversationKey string

// ChannelKey returns the key of a channel conversation.
func ChannelKey(channelID string) ConversationKey {
	return ConversationKey("channel:" + channelID)
}

// DirectKey returns the key of a direct conversation. The pair is sorted so
// (a, b) and (b, a) share one key.
func DirectKey(a, b string) ConversationKey {
	if a > b {
		a, b = b, a
	}
	return ConversationKey("direct:" + a + "|" + b)
}

// TypingTracker records who is typing where. Each (key, user) pair owns one
// timer; a new signal re-arms it for the full window.
type TypingTracker struct {
	ttl     time.Duration
	entries map[ConversationKey]map[string]*time.Timer
	closed  bool
	mu      sync.Mutex
}

// NewTypingTracker creates a tracker whose entries expire after ttl.
func NewTypingTracker(ttl time.Duration) *TypingTracker {
	return &TypingTracker{
		ttl:     ttl,
		entries: make(map[ConversationKey]map[string]*time.Timer),
	}
}

// MarkTyping records userID as typing in key until the window elapses.
func (t *TypingTracker) MarkTyping(key ConversationKey, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	users, ok := t.entries[key]
	if !ok {
		users = make(map[string]*time.Timer)
		t.entries[key] = users
	}
	if prev, ok := users[userID]; ok {
		prev.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.ttl, func() {
		t.expire(key, userID, timer)
	})
	users[userID] = timer
}

// expire removes the entry only if timer is still the active one; a timer
// that fired while being re-armed must not clear the fresh signal.
func (t *TypingTracker) expire(key ConversationKey, userID string, timer *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.entries[key]
	if !ok || users[userID] != timer {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.entries, key)
	}
}

// IsTyping reports whether userID is currently typing in key.
func (t *TypingTracker) IsTyping(key ConversationKey, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key][userID]
	return ok
}

// Typers returns the users typing in key, sorted.
func (t *TypingTracker) Typers(key ConversationKey) []string {
	t.mu.Lock()
	users := make([]string, 0, len(t.entries[key]))
	for userID := range t.entries[key] {
		users = append(users, userID)
	}
	t.mu.Unlock()

	sort.Strings(users)
	return users
}

// ClearUser drops every typing entry of userID.
func (t *TypingTracker) ClearUser(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, users := range t.entries {
		if timer, ok := users[userID]; ok {
			timer.Stop()
			delete(users, userID)
			if len(users) == 0 {
				delete(t.entries, key)
			}
		}
	}
}

// Close stops all timers. Later signals are ignored.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, users := range t.entries {
		for _, timer := range users {
			timer.Stop()
		}
	}
	t.entries = make(map[ConversationKey]map[string]*time.Timer)
	t.closed = true
}
