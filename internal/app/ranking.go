package app

import (
	"sort"
	"time"

	"live-quiz-service/internal/domain"
)

// rankOrder sorts participants by score desc, then average and cumulative response time asc.
// Input order (join order) is the final tie-breaker, so the result is deterministic.
func rankOrder(participants []domain.Participant) []domain.Participant {
	ordered := append([]domain.Participant(nil), participants...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if avgA, avgB := a.AverageResponseTime(), b.AverageResponseTime(); avgA != avgB {
			return avgA < avgB
		}
		return a.TotalResponseTime < b.TotalResponseTime
	})
	return ordered
}

// ComputeRankings derives the session leaderboard from participant state. Ranks are
// dense 1..N with no shared positions.
func ComputeRankings(sessionID string, participants []domain.Participant, totalQuestions, currentQuestion int, now time.Time) domain.SessionStatistics {
	ordered := rankOrder(participants)
	stats := domain.SessionStatistics{
		SessionID:        sessionID,
		TotalQuestions:   totalQuestions,
		CurrentQuestion:  currentQuestion,
		ParticipantCount: len(ordered),
		Rankings:         make([]domain.RankingEntry, 0, len(ordered)),
		UpdatedAt:        now,
	}

	total := 0
	for i, p := range ordered {
		stats.Rankings = append(stats.Rankings, domain.RankingEntry{
			ParticipantID:     p.ID,
			Name:              p.Name,
			TotalScore:        p.Score,
			CorrectAnswers:    p.CorrectAnswers,
			QuestionsAnswered: p.QuestionsAnswered,
			AverageResponseMs: p.AverageResponseTime().Milliseconds(),
			Streak:            p.Streak,
			BestStreak:        p.BestStreak,
			Rank:              i + 1,
		})
		total += p.Score
		if p.Score > stats.TopScore {
			stats.TopScore = p.Score
		}
	}
	if len(ordered) > 0 {
		stats.AverageScore = float64(total) / float64(len(ordered))
	}
	return stats
}

// ComputeParticipantStats returns one participant's statistics with the rank from the
// same ordering as ComputeRankings.
func ComputeParticipantStats(participants []domain.Participant, participantID string) (domain.ParticipantStatistics, error) {
	for i, p := range rankOrder(participants) {
		if p.ID != participantID {
			continue
		}
		accuracy := 0.0
		if p.QuestionsAnswered > 0 {
			accuracy = float64(p.CorrectAnswers) / float64(p.QuestionsAnswered)
		}
		return domain.ParticipantStatistics{
			ParticipantID:     p.ID,
			Name:              p.Name,
			TotalScore:        p.Score,
			CorrectAnswers:    p.CorrectAnswers,
			QuestionsAnswered: p.QuestionsAnswered,
			Accuracy:          accuracy,
			AverageResponseMs: p.AverageResponseTime().Milliseconds(),
			Streak:            p.Streak,
			BestStreak:        p.BestStreak,
			Rank:              i + 1,
		}, nil
	}
	return domain.ParticipantStatistics{}, domain.ErrUnknownParticipant
}
