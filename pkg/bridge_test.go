package pkg_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnkhuat/chessbridge/pkg"
)

func runLoop(t *testing.T) *pkg.Loop {
	t.Helper()
	l := pkg.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(cancel)
	return l
}

func TestDispatchDeliversOnOwner(t *testing.T) {
	l := runLoop(t)
	b := pkg.NewBridge(l, zerolog.Nop())
	scope := pkg.NewScope("white")

	got := make(chan string, 1)
	id, err := pkg.Dispatch(b, scope, func() (string, error) {
		return "e2e4", nil
	}, func(v string, err error) {
		got <- v
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case v := <-got:
		assert.Equal(t, "e2e4", v)
	case <-time.After(waitFor):
		t.Fatal("result never delivered")
	}
	l.Call(func() {})
	assert.False(t, scope.Busy())
}

func TestDispatchOneJobPerScope(t *testing.T) {
	l := runLoop(t)
	b := pkg.NewBridge(l, zerolog.Nop())
	scope := pkg.NewScope("white")

	release := make(chan struct{})
	done := make(chan struct{})
	_, err := pkg.Dispatch(b, scope, func() (int, error) {
		<-release
		return 1, nil
	}, func(int, error) { close(done) })
	require.NoError(t, err)
	assert.True(t, scope.Busy())

	_, err = pkg.Dispatch(b, scope, func() (int, error) { return 2, nil }, func(int, error) {})
	assert.ErrorIs(t, err, pkg.ErrBusy)

	close(release)
	<-done
	l.Call(func() {})
	_, err = pkg.Dispatch(b, scope, func() (int, error) { return 3, nil }, func(int, error) {})
	assert.NoError(t, err)
}

func TestDispatchDropsClosedScope(t *testing.T) {
	l := runLoop(t)
	b := pkg.NewBridge(l, zerolog.Nop())
	scope := pkg.NewScope("black")

	release := make(chan struct{})
	returned := make(chan struct{})
	var delivered atomic.Bool
	_, err := pkg.Dispatch(b, scope, func() (int, error) {
		defer close(returned)
		<-release
		return 0, errors.New("late")
	}, func(int, error) { delivered.Store(true) })
	require.NoError(t, err)

	scope.Close()
	scope.Close()
	close(release)
	<-returned
	assert.Never(t, delivered.Load, 50*time.Millisecond, 5*time.Millisecond)

	_, err = pkg.Dispatch(b, scope, func() (int, error) { return 0, nil }, func(int, error) {})
	assert.Error(t, err)
}

func TestAfterRunsOnOwnerUnlessClosed(t *testing.T) {
	l := runLoop(t)
	b := pkg.NewBridge(l, zerolog.Nop())

	fired := make(chan struct{})
	b.After(pkg.NewScope("game"), 10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(waitFor):
		t.Fatal("timer never fired")
	}

	var ran atomic.Bool
	closed := pkg.NewScope("game")
	b.After(closed, 10*time.Millisecond, func() { ran.Store(true) })
	closed.Close()

	stopped := pkg.NewScope("game")
	b.After(stopped, 10*time.Millisecond, func() { ran.Store(true) })
	b.Stop()

	assert.Never(t, ran.Load, 60*time.Millisecond, 5*time.Millisecond)
}

func TestLoopCallWaits(t *testing.T) {
	l := runLoop(t)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		l.Queue(func() { order = append(order, i) })
	}
	var got []int
	l.Call(func() { got = append(got, order...) })
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoopDropsAfterStop(t *testing.T) {
	l := pkg.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- l.Run(ctx) }()
	cancel()
	assert.ErrorIs(t, <-stopped, context.Canceled)

	for i := 0; i < pkg.LoopQueueSize*2; i++ {
		l.Queue(func() {})
	}
	l.Call(func() { t.Error("ran after stop") })
}
