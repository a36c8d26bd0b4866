package pkg

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrBusy = errors.New("scope already has work in flight")

// Owner runs functions on the goroutine that owns game state, in the order
// they were queued. tview.Application satisfies it through QueueUpdateDraw,
// Loop satisfies it directly.
type Owner interface {
	Queue(f func())
}

// Scope ties background work to one engine session (or one game). Once
// closed, anything still in flight for it is dropped when it comes back.
type Scope struct {
	Name string

	closed atomic.Bool
	busy   atomic.Bool
}

func NewScope(name string) *Scope {
	return &Scope{Name: name}
}

// Close is idempotent.
func (s *Scope) Close() {
	s.closed.Store(true)
}

func (s *Scope) Closed() bool {
	return s.closed.Load()
}

// Busy reports whether a dispatched job has not been handed back yet.
func (s *Scope) Busy() bool {
	return s.busy.Load()
}

// Bridge is the only way results cross from workers to the owner.
type Bridge struct {
	owner Owner
	log   zerolog.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
}

func NewBridge(owner Owner, logger zerolog.Logger) *Bridge {
	return &Bridge{
		owner:  owner,
		log:    logger,
		timers: make(map[*time.Timer]struct{}),
	}
}

// Dispatch runs work on its own goroutine and queues deliver on the owner
// with its outcome. One job per scope at a time; a closed scope swallows
// the outcome.
func Dispatch[T any](b *Bridge, scope *Scope, work func() (T, error), deliver func(T, error)) (string, error) {
	if scope.Closed() {
		return "", errors.New("scope closed")
	}
	if !scope.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	id := uuid.NewString()
	log := b.log.With().Str("scope", scope.Name).Str("job", id).Logger()
	log.Debug().Msg("dispatch")

	go func() {
		v, err := work()
		b.owner.Queue(func() {
			scope.busy.Store(false)
			if scope.Closed() {
				log.Debug().Err(err).Msg("dropping result of closed scope")
				return
			}
			deliver(v, err)
		})
	}()
	return id, nil
}

// After queues f on the owner once d has elapsed, unless scope has been
// closed by then. It never sleeps on the calling goroutine.
func (b *Bridge) After(scope *Scope, d time.Duration, f func()) {
	var t *time.Timer
	b.mu.Lock()
	defer b.mu.Unlock()
	t = time.AfterFunc(d, func() {
		b.mu.Lock()
		delete(b.timers, t)
		b.mu.Unlock()
		b.owner.Queue(func() {
			if scope.Closed() {
				return
			}
			f()
		})
	})
	b.timers[t] = struct{}{}
}

// Stop cancels pending After timers.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t := range b.timers {
		t.Stop()
		delete(b.timers, t)
	}
}
