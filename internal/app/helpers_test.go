package app_test

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

type recordingConn struct {
	id   string
	fail bool

	mu     sync.Mutex
	events []domain.Event
}

func newConn(id string) *recordingConn {
	return &recordingConn{id: id}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(event domain.Event) error {
	if c.fail {
		return errors.New("connection closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *recordingConn) last(eventType string) (domain.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			return c.events[i], true
		}
	}
	return domain.Event{}, false
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// textQueue builds n questions whose correct option is index 1.
func textQueue(n int) []domain.QueueItem {
	items := make([]domain.QueueItem, 0, n)
	for i := 1; i <= n; i++ {
		q := domain.Question{
			ID:           fmt.Sprintf("q%d", i),
			Text:         fmt.Sprintf("Question %d", i),
			Options:      []string{"wrong", "right", "also wrong"},
			CorrectIndex: 1,
			TimeLimitMs:  10000,
		}
		items = append(items, domain.QueueItem{Text: &q})
	}
	return items
}

func sampleVideoQuiz() domain.VideoQuiz {
	return domain.VideoQuiz{
		VideoID:       "dQw4w9WgXcQ",
		Title:         "Never Gonna Give You Up",
		Channel:       "Rick Astley",
		StartTime:     43,
		Duration:      15,
		Question:      "What is never going to happen?",
		CorrectAnswer: "Give you up",
		Options:       []string{"Let you down", "give you up ", "Run around"},
	}
}

func newTextSession(clock *fakeClock, questions int) *app.Session {
	session, err := app.NewSession("S1", "General knowledge", textQueue(questions), false, app.SessionOptions{
		Now: clock.Now,
	})
	if err != nil {
		panic(err)
	}
	return session
}
