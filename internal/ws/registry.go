package ws

import (
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"chat-hub/internal/observability"
)

// Registry maps a user id to its single live connection.
type Registry struct {
	sessions map[string]Conn
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Conn)}
}

// Register binds conn to userID, replacing any earlier connection. The
// replaced handle is returned and is not closed here.
func (r *Registry) Register(userID string, conn Conn) Conn {
	r.mu.Lock()
	prev := r.sessions[userID]
	r.sessions[userID] = conn
	observability.SetWSSessions(len(r.sessions))
	r.mu.Unlock()

	if prev == conn {
		return nil
	}
	return prev
}

// Lookup returns the connection registered for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[userID]
	return conn, ok
}

// Remove deletes the mapping for userID if present.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	observability.SetWSSessions(len(r.sessions))
}

// RemoveIf deletes the mapping only while it still points at conn, so a
// replaced connection cannot tear down its successor.
func (r *Registry) RemoveIf(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.sessions, userID)
	observability.SetWSSessions(len(r.sessions))
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Send delivers payload to userID when registered and ready.
func (r *Registry) Send(userID string, payload []byte) bool {
	conn, ok := r.Lookup(userID)
	if !ok || !conn.Ready() {
		return false
	}
	if err := conn.Send(payload); err != nil {
		jww.DEBUG.Printf("websocket write to %s failed: %v", userID, err)
		return false
	}
	return true
}

// BroadcastExcept sends payload to every ready connection except the one
// registered for excludeUserID and returns the number of deliveries.
func (r *Registry) BroadcastExcept(payload []byte, excludeUserID string) int {
	r.mu.RLock()
	targets := make(map[string]Conn, len(r.sessions))
	for userID, conn := range r.sessions {
		if userID != excludeUserID {
			targets[userID] = conn
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for userID, conn := range targets {
		if !conn.Ready() {
			continue
		}
		if err := conn.Send(payload); err != nil {
			jww.DEBUG.Printf("websocket broadcast to %s failed: %v", userID, err)
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll closes and forgets every registered connection and returns the
// user ids whose sessions were closed.
func (r *Registry) CloseAll(code int, reason string) []string {
	r.mu.Lock()
	closed := make(map[string]Conn, len(r.sessions))
	for userID, conn := range r.sessions {
		closed[userID] = conn
	}
	r.sessions = make(map[string]Conn)
	observability.SetWSSessions(0)
	r.mu.Unlock()

	userIDs := make([]string, 0, len(closed))
	for userID, conn := range closed {
		_ = conn.Close(code, reason)
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	return userIDs
}
