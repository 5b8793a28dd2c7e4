package server

import (
	"fmt"
	"sync"
)

// Class is the registry classification of a live connection. A connection
// has exactly one class at any time.
type Class int

const (
	ClassUnclassified Class = iota
	ClassAuthenticating
	ClassPendingRegistration
	ClassAuthenticated
)

func (c Class) String() string {
	switch c {
	case ClassAuthenticating:
		return "authenticating"
	case ClassPendingRegistration:
		return "pending_registration"
	case ClassAuthenticated:
		return "authenticated"
	default:
		return "unclassified"
	}
}

// Recipient is a connection that can receive relayed messages.
type Recipient interface {
	ID() string
	Send(msg []byte) error
}

type entry struct {
	conn     *Conn
	class    Class
	username string
}

// RegistryStats is a point-in-time count of the registry.
type RegistryStats struct {
	Connections         int `json:"connections"`
	Authenticating      int `json:"authenticating"`
	PendingRegistration int `json:"pending_registration"`
	Authenticated       int `json:"authenticated"`
	PendingAddresses    int `json:"pending_addresses"`
	TCP                 int `json:"tcp"`
	WebSocket           int `json:"websocket"`
}

// Registry tracks live connections, their classification and the set of
// addresses that must register. One RWMutex serializes every mutation and
// every snapshot.
type Registry struct {
	entries map[string]*entry
	pending map[string]struct{}
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		pending: make(map[string]struct{}),
	}
}

// Add registers a new, unclassified connection
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[c.ID()] = &entry{conn: c}
}

// Remove discards a connection together with its class and username.
// The pending set is keyed by address and is left untouched.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Classify decides the initial class of a connection. A pending address wins.
// With trustAddress set, a connection from an address that already has an
// authenticated connection inherits its username.
func (r *Registry) Classify(id string, trustAddress bool) (Class, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ClassUnclassified, ""
	}
	addr := e.conn.Addr()

	if _, pending := r.pending[addr]; pending {
		e.class = ClassPendingRegistration
		return e.class, ""
	}

	if trustAddress {
		for otherID, other := range r.entries {
			if otherID != id && other.class == ClassAuthenticated && other.conn.Addr() == addr {
				e.class = ClassAuthenticated
				e.username = other.username
				return e.class, e.username
			}
		}
	}

	e.class = ClassAuthenticating
	return e.class, ""
}

// MarkPending moves a connection to pending registration and records its
// address so later connections from it are classified the same way.
func (r *Registry) MarkPending(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	e.class = ClassPendingRegistration
	r.pending[e.conn.Addr()] = struct{}{}
}

// ClearPending removes address from the pending set.
func (r *Registry) ClearPending(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, address)
}

// IsPending reports whether address must register.
func (r *Registry) IsPending(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pending[address]
	return ok
}

// Authenticate binds username to a connection. The username of an
// authenticated connection never changes.
func (r *Registry) Authenticate(id, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("connection %s not registered", id)
	}
	if e.class == ClassAuthenticated && e.username != username {
		return fmt.Errorf("connection %s already authenticated as %q", id, e.username)
	}
	e.class = ClassAuthenticated
	e.username = username
	return nil
}

// classOf returns the class and username of a connection.
func (r *Registry) classOf(id string) (Class, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return ClassUnclassified, "", false
	}
	return e.class, e.username, true
}

// Authenticated returns a snapshot of every authenticated connection.
func (r *Registry) Authenticated() []Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Recipient, 0, len(r.entries))
	for _, e := range r.entries {
		if e.class == ClassAuthenticated {
			out = append(out, e.conn)
		}
	}
	return out
}

// HasAddress reports whether any live connection comes from address.
func (r *Registry) HasAddress(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.conn.Addr() == address {
			return true
		}
	}
	return false
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats returns per-class counts
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := RegistryStats{
		Connections:      len(r.entries),
		PendingAddresses: len(r.pending),
	}
	for _, e := range r.entries {
		if e.conn.Transport() == TransportWebSocket {
			st.WebSocket++
		} else {
			st.TCP++
		}
		switch e.class {
		case ClassAuthenticating:
			st.Authenticating++
		case ClassPendingRegistration:
			st.PendingRegistration++
		case ClassAuthenticated:
			st.Authenticated++
		}
	}
	return st
}

// ForEach executes a function for each live connection on a snapshot, so fn
// may call back into the registry.
func (r *Registry) ForEach(fn func(*Conn)) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.entries))
	for _, e := range r.entries {
		conns = append(conns, e.conn)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		fn(c)
	}
}
