package app_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"live-quiz-service/internal/app"
)

func TestAfterFuncTimerFires(t *testing.T) {
	timer := app.NewAfterFuncTimer()
	fired := make(chan int, 1)

	timer.Schedule("S1", 1, 10*time.Millisecond, func() { fired <- 1 })

	select {
	case n := <-fired:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return timer.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestAfterFuncTimerReplacesAndCancels(t *testing.T) {
	timer := app.NewAfterFuncTimer()
	var calls atomic.Int32

	timer.Schedule("S1", 1, 20*time.Millisecond, func() { calls.Add(1) })
	timer.Schedule("S1", 2, time.Hour, func() { calls.Add(100) })
	assert.Equal(t, 1, timer.Pending())

	timer.Cancel("S1")
	timer.Cancel("S1")
	assert.Zero(t, timer.Pending())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
