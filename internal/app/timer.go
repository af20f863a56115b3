package app

import (
	"sync"
	"time"
)

// QuestionTimer closes a question once its time limit elapses.
type QuestionTimer interface {
	Schedule(sessionID string, questionNumber int, after time.Duration, fire func())
	Cancel(sessionID string)
}

// AfterFuncTimer keeps at most one pending timer per session.
type AfterFuncTimer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewAfterFuncTimer() *AfterFuncTimer {
	return &AfterFuncTimer{timers: make(map[string]*time.Timer)}
}

// Schedule replaces any pending timer of the session. fire runs on its own goroutine.
func (t *AfterFuncTimer) Schedule(sessionID string, _ int, after time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.timers[sessionID]; ok {
		prev.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(after, func() {
		t.mu.Lock()
		if t.timers[sessionID] == timer {
			delete(t.timers, sessionID)
		}
		t.mu.Unlock()
		fire()
	})
	t.timers[sessionID] = timer
}

func (t *AfterFuncTimer) Cancel(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[sessionID]; ok {
		timer.Stop()
		delete(t.timers, sessionID)
	}
}

// Pending reports how many sessions have a timer armed.
func (t *AfterFuncTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
