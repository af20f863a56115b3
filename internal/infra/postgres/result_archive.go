package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"live-quiz-service/internal/domain"
)

// ResultArchive stores the final outcome of ended sessions in session_results.
type ResultArchive struct {
	pool *pgxpool.Pool
}

func NewResultArchive(pool *pgxpool.Pool) *ResultArchive {
	return &ResultArchive{pool: pool}
}

// ArchiveSession implements app.ResultArchive. Archiving the same session twice keeps the
// latest summary.
func (a *ResultArchive) ArchiveSession(ctx context.Context, summary domain.SessionSummary) error {
	rankings, err := json.Marshal(summary.FinalRankings)
	if err != nil {
		return fmt.Errorf("marshal rankings: %w", err)
	}
	results, err := json.Marshal(summary.FinalResults)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO session_results (session_id, title, ended_at, rankings, results)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET title = EXCLUDED.title,
		    ended_at = EXCLUDED.ended_at,
		    rankings = EXCLUDED.rankings,
		    results = EXCLUDED.results`,
		summary.SessionID, summary.Title, summary.EndedAt, rankings, results)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", summary.SessionID, err)
	}
	return nil
}

// LoadSummary reads an archived session back.
func (a *ResultArchive) LoadSummary(ctx context.Context, sessionID string) (domain.SessionSummary, error) {
	var (
		summary  domain.SessionSummary
		rankings []byte
		results  []byte
	)
	err := a.pool.QueryRow(ctx,
		`SELECT session_id, title, ended_at, rankings, results FROM session_results WHERE session_id=$1`,
		sessionID).Scan(&summary.SessionID, &summary.Title, &summary.EndedAt, &rankings, &results)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SessionSummary{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("load summary: %w", err)
	}
	if err := json.Unmarshal(rankings, &summary.FinalRankings); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("unmarshal rankings: %w", err)
	}
	if err := json.Unmarshal(results, &summary.FinalResults); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("unmarshal results: %w", err)
	}
	return summary, nil
}
