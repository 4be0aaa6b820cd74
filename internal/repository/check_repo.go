package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"spamcheck-backend/internal/models"
)

type CheckRepo struct {
	pool *pgxpool.Pool
}

func NewCheckRepo(pool *pgxpool.Pool) *CheckRepo {
	return &CheckRepo{pool: pool}
}

func (r *CheckRepo) Record(ctx context.Context, rec *models.CheckRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	query := `INSERT INTO checks (id, session_id, sequence, state, failure_kind, label, duration_ms, endpoint, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.SessionID, rec.Sequence, string(rec.State), string(rec.Failure),
		string(rec.Label), rec.DurationMS, rec.Endpoint, rec.CreatedAt,
	)
	return err
}

func (r *CheckRepo) Stats(ctx context.Context) (*models.CheckStats, error) {
	stats := newStats()

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(duration_ms) FILTER (WHERE state = 'success'), 0) FROM checks`,
	).Scan(&stats.Total, &stats.AvgLatency)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT state, COALESCE(failure_kind, ''), COALESCE(label, ''), COUNT(*)
		FROM checks
		GROUP BY state, failure_kind, label
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var state, failure, label string
		var n int64
		if err := rows.Scan(&state, &failure, &label, &n); err != nil {
			return nil, err
		}
		addStats(stats, models.State(state), models.FailureKind(failure), models.Label(label), n)
	}
	return stats, rows.Err()
}

func newStats() *models.CheckStats {
	return &models.CheckStats{
		ByState:   make(map[models.State]int64),
		ByLabel:   make(map[models.Label]int64),
		ByFailure: make(map[models.FailureKind]int64),
	}
}

func addStats(s *models.CheckStats, state models.State, failure models.FailureKind, label models.Label, n int64) {
	s.ByState[state] += n
	if failure != models.FailureNone {
		s.ByFailure[failure] += n
	}
	if label != "" {
		s.ByLabel[label] += n
	}
}
