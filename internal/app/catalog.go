package app

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"live-quiz-service/internal/domain"
)

// VideoQuizCatalog holds authored video quizzes that can be appended to session queues.
type VideoQuizCatalog struct {
	mu      sync.RWMutex
	quizzes map[string]domain.VideoQuiz
	now     func() time.Time
}

func NewVideoQuizCatalog() *VideoQuizCatalog {
	return &VideoQuizCatalog{
		quizzes: make(map[string]domain.VideoQuiz),
		now:     time.Now,
	}
}

// Create validates and stores a new quiz under a fresh id.
func (c *VideoQuizCatalog) Create(quiz domain.VideoQuiz) (domain.VideoQuiz, error) {
	if err := validateVideoQuiz(quiz); err != nil {
		return domain.VideoQuiz{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	quiz.ID = uuid.NewString()
	quiz.Options = append([]string(nil), quiz.Options...)
	quiz.CreatedAt = now
	quiz.UpdatedAt = now
	c.quizzes[quiz.ID] = quiz
	return quiz, nil
}

// Update replaces the content of an existing quiz, keeping its id and creation time.
func (c *VideoQuizCatalog) Update(quiz domain.VideoQuiz) (domain.VideoQuiz, error) {
	if err := validateVideoQuiz(quiz); err != nil {
		return domain.VideoQuiz{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.quizzes[quiz.ID]
	if !ok {
		return domain.VideoQuiz{}, domain.ErrQuizNotFound
	}
	quiz.Options = append([]string(nil), quiz.Options...)
	quiz.CreatedAt = existing.CreatedAt
	quiz.UpdatedAt = c.now()
	c.quizzes[quiz.ID] = quiz
	return quiz, nil
}

// Delete removes a quiz. Queues that already hold a copy are unaffected.
func (c *VideoQuizCatalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.quizzes[id]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(c.quizzes, id)
	return nil
}

func (c *VideoQuizCatalog) Get(id string) (domain.VideoQuiz, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quiz, ok := c.quizzes[id]
	if !ok {
		return domain.VideoQuiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

// List returns all quizzes, oldest first.
func (c *VideoQuizCatalog) List() []domain.VideoQuiz {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.VideoQuiz, 0, len(c.quizzes))
	for _, q := range c.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func validateVideoQuiz(quiz domain.VideoQuiz) error {
	switch {
	case strings.TrimSpace(quiz.VideoID) == "":
		return fmt.Errorf("%w: video id is required", domain.ErrInvalidQuiz)
	case strings.TrimSpace(quiz.Question) == "":
		return fmt.Errorf("%w: question is required", domain.ErrInvalidQuiz)
	case len(quiz.Options) < 2:
		return fmt.Errorf("%w: at least two options are required", domain.ErrInvalidQuiz)
	case quiz.Duration < 0 || quiz.StartTime < 0:
		return fmt.Errorf("%w: start time and duration must be non-negative", domain.ErrInvalidQuiz)
	case quiz.CorrectIndex() < 0:
		return fmt.Errorf("%w: correct answer must match an option", domain.ErrInvalidQuiz)
	}
	return nil
}
