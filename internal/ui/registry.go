package ui

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SweepInterval is the time between idle-session sweeps.
const SweepInterval = 5 * time.Minute

// Registry maps browser session ids to live sessions.
type Registry struct {
	deps        Deps
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. A non-positive idleTimeout disables
// sweeping.
func NewRegistry(deps Deps, idleTimeout time.Duration) *Registry {
	return &Registry{
		deps:        deps,
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Get returns the session for id, creating and starting it on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[id]; ok {
		return session
	}

	session := NewSession(id, r.deps)
	session.StartWorker()
	r.sessions[id] = session
	log.Info().Str("sessionID", id).Int("sessions", len(r.sessions)).Msg("new browser session created")
	return session
}

// Lookup returns an existing session without creating one.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep stops and removes sessions idle for longer than the idle timeout.
// It returns the number of sessions removed.
func (r *Registry) Sweep() int {
	if r.idleTimeout <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	var idle []*Session
	for id, session := range r.sessions {
		if session.LastActive().Before(cutoff) {
			idle = append(idle, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	// Stop outside the lock; Stop waits for in-flight tasks
	for _, session := range idle {
		session.Stop()
	}

	if len(idle) > 0 {
		log.Info().Int("removed", len(idle)).Msg("swept idle sessions")
	}
	return len(idle)
}

// Run sweeps idle sessions periodically. It blocks until the context is cancelled.
func (r *Registry) Run(ctx context.Context) {
	log.Info().Dur("interval", SweepInterval).Dur("idleTimeout", r.idleTimeout).Msg("starting session sweeper")

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Shutdown stops all session workers gracefully.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Stop()
	}
	log.Info().Int("count", len(sessions)).Msg("stopped all session workers")
}
