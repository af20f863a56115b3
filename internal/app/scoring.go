package app

import "time"

// ScoringPolicy computes points for a single answer. The zero value is not useful; start
// from DefaultScoringPolicy.
type ScoringPolicy struct {
	BasePoints     int
	MinPoints      int
	StreakBonus    int
	MaxStreakBonus int
}

// DefaultScoringPolicy returns the standard speed + streak weighting.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		BasePoints:     1000,
		MinPoints:      100,
		StreakBonus:    50,
		MaxStreakBonus: 250,
	}
}

// Score returns the points for one answer. Incorrect answers score 0. Correct answers lose
// points linearly with the fraction of the time limit used, never dropping below MinPoints,
// and gain a capped bonus proportional to the streak length after this answer.
func (p ScoringPolicy) Score(correct bool, responseTime, timeLimit time.Duration, currentStreak int) int {
	if !correct {
		return 0
	}

	minPoints := p.MinPoints
	if minPoints < 1 {
		minPoints = 1
	}
	base := p.BasePoints
	if base < minPoints {
		base = minPoints
	}

	points := base
	if timeLimit > 0 {
		elapsed := responseTime
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed > timeLimit {
			elapsed = timeLimit
		}
		decay := int(int64(base-minPoints) * int64(elapsed) / int64(timeLimit))
		points = base - decay
	}
	if points < minPoints {
		points = minPoints
	}

	return points + p.streakBonus(NextStreak(true, currentStreak))
}

func (p ScoringPolicy) streakBonus(streak int) int {
	if p.StreakBonus <= 0 || streak <= 0 {
		return 0
	}
	bonus := p.StreakBonus * streak
	if p.MaxStreakBonus > 0 && bonus > p.MaxStreakBonus {
		bonus = p.MaxStreakBonus
	}
	return bonus
}

// NextStreak returns the streak after an answer: incremented when correct, reset otherwise.
func NextStreak(correct bool, currentStreak int) int {
	if !correct {
		return 0
	}
	if currentStreak < 0 {
		currentStreak = 0
	}
	return currentStreak + 1
}
