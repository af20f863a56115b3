package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func TestCatalogCreateAssignsIdentity(t *testing.T) {
	catalog := app.NewVideoQuizCatalog()

	input := sampleVideoQuiz()
	input.ID = "client-chosen"
	created, err := catalog.Create(input)
	require.NoError(t, err)

	assert.NotEqual(t, "client-chosen", created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := catalog.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCatalogUpdateKeepsCreationTime(t *testing.T) {
	catalog := app.NewVideoQuizCatalog()
	created, err := catalog.Create(sampleVideoQuiz())
	require.NoError(t, err)

	change := created
	change.Question = "Which line comes next?"
	change.CreatedAt = created.CreatedAt.Add(-1000)
	updated, err := catalog.Update(change)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Which line comes next?", updated.Question)

	change.ID = "missing"
	_, err = catalog.Update(change)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)
}

func TestCatalogValidation(t *testing.T) {
	catalog := app.NewVideoQuizCatalog()

	cases := map[string]func(q *domain.VideoQuiz){
		"missing video":    func(q *domain.VideoQuiz) { q.VideoID = " " },
		"missing question": func(q *domain.VideoQuiz) { q.Question = "" },
		"single option":    func(q *domain.VideoQuiz) { q.Options = q.Options[:1] },
		"negative start":   func(q *domain.VideoQuiz) { q.StartTime = -1 },
		"unmatched answer": func(q *domain.VideoQuiz) { q.CorrectAnswer = "Desert you" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			q := sampleVideoQuiz()
			mutate(&q)
			_, err := catalog.Create(q)
			assert.ErrorIs(t, err, domain.ErrInvalidQuiz)
		})
	}
	assert.Empty(t, catalog.List())
}

func TestCatalogListAndDelete(t *testing.T) {
	catalog := app.NewVideoQuizCatalog()
	a, err := catalog.Create(sampleVideoQuiz())
	require.NoError(t, err)
	b, err := catalog.Create(sampleVideoQuiz())
	require.NoError(t, err)

	assert.Len(t, catalog.List(), 2)

	require.NoError(t, catalog.Delete(a.ID))
	assert.ErrorIs(t, catalog.Delete(a.ID), domain.ErrQuizNotFound)
	_, err = catalog.Get(a.ID)
	assert.ErrorIs(t, err, domain.ErrQuizNotFound)

	list := catalog.List()
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}
