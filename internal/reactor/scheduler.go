package reactor

import (
	"fmt"
	"sync"
)

// Scheduler owns a fixed pool of Reactors, one per worker thread, and
// balances new actor registrations across them, spec 4.5: "a scheduler
// owns N reactors and balances new actor registrations across them by
// lowest estimated load (actor count). There is no work-stealing: once
// scheduled, an actor stays on its reactor for life."
type Scheduler struct {
	mu       sync.Mutex
	reactors []*Reactor
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler constructs n reactors, each with its own readiness
// poller. n must be at least 1.
func NewScheduler(n int) (*Scheduler, error) {
	if n < 1 {
		return nil, fmt.Errorf("reactor: scheduler needs at least one reactor, got %d", n)
	}

	s := &Scheduler{stop: make(chan struct{})}
	for i := 0; i < n; i++ {
		r, err := NewReactor()
		if err != nil {
			s.closeReactors(i)
			return nil, fmt.Errorf("reactor: scheduler init reactor %d: %w", i, err)
		}
		s.reactors = append(s.reactors, r)
	}
	return s, nil
}

func (s *Scheduler) closeReactors(n int) {
	for i := 0; i < n; i++ {
		s.reactors[i].Close()
	}
}

// Start launches each reactor's event loop on its own goroutine.
func (s *Scheduler) Start() {
	for _, r := range s.reactors {
		s.wg.Add(1)
		go func(r *Reactor) {
			defer s.wg.Done()
			r.Run(s.stop)
		}(r)
	}
}

// Stop signals every reactor loop to exit and waits for them to return,
// then releases their pollers.
func (s *Scheduler) Stop() {
	close(s.stop)
	for _, r := range s.reactors {
		r.wakePoller()
	}
	s.wg.Wait()
	for _, r := range s.reactors {
		r.Close()
	}
}

// NumReactors reports the size of the pool.
func (s *Scheduler) NumReactors() int {
	return len(s.reactors)
}

// Reactor returns the i'th reactor in the pool, for tests and callers
// that need direct access (e.g. to register a socket once an actor has
// been placed).
func (s *Scheduler) Reactor(i int) *Reactor {
	return s.reactors[i]
}

// Place chooses the least-loaded reactor and registers a on it,
// returning both the chosen reactor and the actor's new identity. Once
// placed, an actor is never moved: there is no work-stealing or
// rebalancing pass.
func (s *Scheduler) Place(a Actor) (*Reactor, ActorID) {
	s.mu.Lock()
	best := s.reactors[0]
	bestLoad := best.Load()
	for _, r := range s.reactors[1:] {
		if l := r.Load(); l < bestLoad {
			best, bestLoad = r, l
		}
	}
	s.mu.Unlock()

	id := best.Register(a)
	return best, id
}
