package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPendingOrder(t *testing.T) {
	loop := New()
	var got []int

	loop.Post(func() {
		got = append(got, 1)
		loop.Post(func() { got = append(got, 3) })
	})
	loop.Post(func() { got = append(got, 2) })

	n := loop.RunPending()
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 0, loop.Len())
}

func TestPostNil(t *testing.T) {
	loop := New()
	loop.Post(nil)
	assert.Equal(t, 0, loop.Len())
}

func TestAfterFuncManualClock(t *testing.T) {
	clock := NewManualClock()
	loop := New(WithClock(clock))
	var got []string

	loop.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	loop.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })

	clock.Advance(5 * time.Millisecond)
	loop.RunPending()
	assert.Empty(t, got)

	clock.Advance(15 * time.Millisecond)
	loop.RunPending()
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 0, clock.Pending())
}

func TestTimerStop(t *testing.T) {
	clock := NewManualClock()
	loop := New(WithClock(clock))
	ran := false

	timer := loop.AfterFunc(time.Second, func() { ran = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Second)
	loop.RunPending()
	assert.False(t, ran)
}

func TestTimerStopAfterClockFired(t *testing.T) {
	clock := NewManualClock()
	loop := New(WithClock(clock))
	ran := false

	timer := loop.AfterFunc(time.Millisecond, func() { ran = true })
	clock.Advance(time.Millisecond)
	require.Equal(t, 1, loop.Len())

	assert.True(t, timer.Stop())
	loop.RunPending()
	assert.False(t, ran)
}

func TestTimerZeroDelay(t *testing.T) {
	loop := New(WithClock(NewManualClock()))
	ran := false
	timer := loop.AfterFunc(0, func() { ran = true })
	loop.RunPending()
	assert.True(t, ran)
	assert.False(t, timer.Stop())
}

func TestRun(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	ran := make(chan struct{})
	loop.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, loop.Running())
}
