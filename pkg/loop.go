package pkg

import (
	"context"
)

const LoopQueueSize = 64

// Loop is an Owner for programs without a UI event loop: every queued
// function runs on the goroutine that called Run.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{
		queue: make(chan func(), LoopQueueSize),
		done:  make(chan struct{}),
	}
}

// Queue never blocks once the loop has stopped; the function is dropped.
func (l *Loop) Queue(f func()) {
	select {
	case l.queue <- f:
	case <-l.done:
	}
}

// Call queues f and waits for it to run. Do not use it from the loop itself.
func (l *Loop) Call(f func()) {
	ran := make(chan struct{})
	l.Queue(func() {
		defer close(ran)
		f()
	})
	select {
	case <-ran:
	case <-l.done:
	}
}

// Run processes queued functions until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case f := <-l.queue:
			f()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
