package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

const maxStoreAttempts = 3

var errStaleRankings = errors.New("stored rankings are newer")

// RankingsCache keeps the latest leaderboard of every session in Redis so dashboards and
// other instances can read it without touching the live session.
//
//	SET  quiz:session:{id}:rankings {json}
//	ZADD quiz:session:{id}:scores   {totalScore} {participantId}
type RankingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankingsCache(client *redis.Client, ttl time.Duration) *RankingsCache {
	return &RankingsCache{client: client, ttl: ttl}
}

// StoreRankings implements app.RankingsSink. A snapshot older than the stored one is
// dropped, so transitions that reach the cache out of order never roll it back.
func (c *RankingsCache) StoreRankings(ctx context.Context, stats domain.SessionStatistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode rankings: %w", err)
	}

	rankingsKey := c.rankingsKey(stats.SessionID)
	scoresKey := c.scoresKey(stats.SessionID)

	store := func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, rankingsKey)
		if err != nil {
			return err
		}
		if current > stats.Version {
			return errStaleRankings
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rankingsKey, raw, c.ttl)
			pipe.Del(ctx, scoresKey)
			if len(stats.Rankings) > 0 {
				members := make([]redis.Z, 0, len(stats.Rankings))
				for _, entry := range stats.Rankings {
					members = append(members, redis.Z{Score: float64(entry.TotalScore), Member: entry.ParticipantID})
				}
				pipe.ZAdd(ctx, scoresKey, members...)
				if c.ttl > 0 {
					pipe.Expire(ctx, scoresKey, c.ttl)
				}
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxStoreAttempts; attempt++ {
		err = c.client.Watch(ctx, store, rankingsKey)
		switch {
		case err == nil, errors.Is(err, errStaleRankings):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("store rankings for %s: %w", stats.SessionID, err)
		}
	}
	return fmt.Errorf("store rankings for %s: %w", stats.SessionID, err)
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if isMiss(err) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	var stored struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		// unreadable snapshots are overwritten
		return -1, nil
	}
	return stored.Version, nil
}

// LoadRankings returns the last stored leaderboard of a session.
func (c *RankingsCache) LoadRankings(ctx context.Context, sessionID string) (domain.SessionStatistics, error) {
	raw, err := c.client.Get(ctx, c.rankingsKey(sessionID)).Bytes()
	if err != nil {
		if isMiss(err) {
			return domain.SessionStatistics{}, domain.ErrSessionNotFound
		}
		return domain.SessionStatistics{}, fmt.Errorf("load rankings for %s: %w", sessionID, err)
	}
	var stats domain.SessionStatistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.SessionStatistics{}, fmt.Errorf("decode rankings for %s: %w", sessionID, err)
	}
	return stats, nil
}

// TopScores returns up to n entries of the stored leaderboard, highest score first. Equal
// scores are ordered by participant id.
func (c *RankingsCache) TopScores(ctx context.Context, sessionID string, n int64) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	top, err := c.client.ZRevRangeWithScores(ctx, c.scoresKey(sessionID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("load top scores for %s: %w", sessionID, err)
	}
	if len(top) == 0 {
		exists, err := c.client.Exists(ctx, c.rankingsKey(sessionID)).Result()
		if err != nil {
			return nil, fmt.Errorf("load top scores for %s: %w", sessionID, err)
		}
		if exists == 0 {
			return nil, domain.ErrSessionNotFound
		}
	}
	entries := make([]domain.LeaderboardEntry, 0, len(top))
	for i, z := range top {
		id, _ := z.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{ParticipantID: id, Score: int(z.Score), Rank: i + 1})
	}
	return entries, nil
}

func (c *RankingsCache) rankingsKey(sessionID string) string {
	return "quiz:session:" + sessionID + ":rankings"
}

func (c *RankingsCache) scoresKey(sessionID string) string {
	return "quiz:session:" + sessionID + ":scores"
}
