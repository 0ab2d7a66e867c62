package intake

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// session is one conversation. The gate serializes turns so that the
// second of two concurrent submits observes the state left by the first.
// lastSeen is atomic so the idle sweep never has to take the gate of a
// session that is mid-turn.
type session struct {
	id        string
	gate      sync.Mutex
	lastSeen  atomic.Int64
	createdAt time.Time
	state     State
	lang      string
	turns     int
	draft     Draft
	trace     []State
}

func newSession(id string) *session {
	s := &session{id: id, createdAt: time.Now()}
	s.setState(StateAwaitingComplaint)
	s.touch()
	return s
}

func (s *session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// setState must be called with the gate held.
func (s *session) setState(st State) {
	s.state = st
	s.trace = append(s.trace, st)
}

// registry owns all live sessions. Its mutex guards only the map; it is
// never held across a turn or any blocking call.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

// obtain returns the session for id, creating it on first use. An empty
// id gets an engine-generated one.
func (r *registry) obtain(id string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if sess, ok := r.sessions[id]; ok {
		return sess
	}
	sess := newSession(id)
	r.sessions[id] = sess
	return sess
}

func (r *registry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) snapshot() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
