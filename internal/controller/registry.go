package controller

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"spamcheck-backend/internal/models"
)

// Factory builds the controller for a new session.
type Factory func(sessionID uuid.UUID) *Controller

// Registry holds one controller per browser session.
type Registry struct {
	mu          sync.Mutex
	controllers map[uuid.UUID]*Controller
	factory     Factory
	now         func() time.Time
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		controllers: make(map[uuid.UUID]*Controller),
		factory:     factory,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
}

// Get returns the session's controller, creating it on first use. The
// session counts as active from this call, so a sweep cannot evict it
// between Get and the caller's first transition.
func (r *Registry) Get(sessionID uuid.UUID) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.controllers[sessionID]
	if !ok {
		c = r.factory(sessionID)
		r.controllers[sessionID] = c
	}
	c.touch(r.now())
	return c
}

// Lookup returns the session's controller without creating one.
func (r *Registry) Lookup(sessionID uuid.UUID) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[sessionID]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were removed. Sessions with a request in flight are kept.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*Controller
	for id, c := range r.controllers {
		if c.View().State == models.StateLoading {
			continue
		}
		if c.LastActive().Before(cutoff) {
			stale = append(stale, c)
			delete(r.controllers, id)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	return len(stale)
}

// StartSweeper runs Sweep every interval until Stop.
func (r *Registry) StartSweeper(interval, maxIdle time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopChan:
				return
			case <-ticker.C:
				if n := r.Sweep(maxIdle); n > 0 {
					log.Debugf("Evicted %d idle sessions", n)
				}
			}
		}
	}()
}

func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.controllers {
		c.Close()
	}
}
