package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func participant(id string, score, answered int, total time.Duration) domain.Participant {
	return domain.Participant{
		ID:                id,
		Name:              "player-" + id,
		Score:             score,
		QuestionsAnswered: answered,
		CorrectAnswers:    answered,
		TotalResponseTime: total,
	}
}

func TestComputeRankingsDenseAndOrdered(t *testing.T) {
	now := time.Now()
	participants := []domain.Participant{
		participant("a", 500, 2, 6*time.Second),
		participant("b", 900, 2, 8*time.Second),
		participant("c", 500, 2, 2*time.Second),
		participant("d", 0, 0, 0),
	}

	stats := app.ComputeRankings("S1", participants, 5, 2, now)

	require.Len(t, stats.Rankings, 4)
	ids := []string{}
	for i, entry := range stats.Rankings {
		assert.Equal(t, i+1, entry.Rank)
		ids = append(ids, entry.ParticipantID)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids, "score desc then faster average")
	assert.Equal(t, 900, stats.TopScore)
	assert.InDelta(t, 475.0, stats.AverageScore, 0.001)
	assert.Equal(t, 4, stats.ParticipantCount)
	assert.Equal(t, 5, stats.TotalQuestions)
	assert.Equal(t, 2, stats.CurrentQuestion)
	assert.Equal(t, int64(1000), stats.Rankings[1].AverageResponseMs)
}

func TestComputeRankingsTotalsMatchParticipants(t *testing.T) {
	participants := []domain.Participant{
		participant("a", 120, 1, time.Second),
		participant("b", 960, 1, time.Second),
		participant("c", 0, 1, time.Second),
	}
	stats := app.ComputeRankings("S1", participants, 1, 1, time.Now())

	sumEntries, sumParticipants := 0, 0
	for _, e := range stats.Rankings {
		sumEntries += e.TotalScore
	}
	for _, p := range participants {
		sumParticipants += p.Score
	}
	assert.Equal(t, sumParticipants, sumEntries)
}

func TestComputeRankingsTiesFallBackToJoinOrder(t *testing.T) {
	participants := []domain.Participant{
		participant("first", 100, 1, time.Second),
		participant("second", 100, 1, time.Second),
	}
	stats := app.ComputeRankings("S1", participants, 1, 1, time.Now())

	assert.Equal(t, "first", stats.Rankings[0].ParticipantID)
	assert.Equal(t, 1, stats.Rankings[0].Rank)
	assert.Equal(t, 2, stats.Rankings[1].Rank)
}

func TestComputeRankingsEmpty(t *testing.T) {
	stats := app.ComputeRankings("S1", nil, 0, 0, time.Now())

	assert.Empty(t, stats.Rankings)
	assert.Zero(t, stats.TopScore)
	assert.Zero(t, stats.AverageScore)
}

func TestComputeParticipantStats(t *testing.T) {
	participants := []domain.Participant{
		participant("a", 300, 2, 4*time.Second),
		{ID: "b", Name: "idle"},
	}
	participants[0].CorrectAnswers = 1

	stats, err := app.ComputeParticipantStats(participants, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rank)
	assert.InDelta(t, 0.5, stats.Accuracy, 0.0001)
	assert.Equal(t, int64(2000), stats.AverageResponseMs)

	idle, err := app.ComputeParticipantStats(participants, "b")
	require.NoError(t, err)
	assert.Zero(t, idle.Accuracy, "no answers means zero accuracy, not a division error")
	assert.Equal(t, 2, idle.Rank)

	_, err = app.ComputeParticipantStats(participants, "missing")
	assert.ErrorIs(t, err, domain.ErrUnknownParticipant)
}
