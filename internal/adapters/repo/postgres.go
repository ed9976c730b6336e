// Package repo persists digest run history.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"discord-digest-bot/internal/domain"
	"discord-digest-bot/internal/infra/metrics"
)

// Postgres implements domain.RunRepo on pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.RunRepo = (*Postgres)(nil)

// NewPostgres creates the repository.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WasPublished reports whether a digest for the guild and date was already
// published.
func (p *Postgres) WasPublished(guild string, date time.Time) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	var id int64
	err := p.pool.QueryRow(ctx, `
SELECT id FROM digest_runs
WHERE guild = $1 AND run_date = $2 AND published_at IS NOT NULL
LIMIT 1
`, guild, date.Format("2006-01-02")).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "digest_runs_published", "digest_runs", start, ignoreNoRows(err))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query published run: %w", err)
	}
	return true, nil
}

// SaveRun inserts a run and returns it with the generated ID.
func (p *Postgres) SaveRun(run domain.DigestRun) (domain.DigestRun, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO digest_runs (guild, run_date, summary, message_count, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, run.Guild, run.Date.Format("2006-01-02"), run.Summary, run.MessageCount, run.CreatedAt).Scan(&run.ID)
	metrics.ObserveNetworkRequest("postgres", "digest_runs_insert", "digest_runs", start, err)
	if err != nil {
		return domain.DigestRun{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// MarkPublished stamps the run as published.
func (p *Postgres) MarkPublished(id int64) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE digest_runs SET published_at = now() WHERE id = $1
`, id)
	metrics.ObserveNetworkRequest("postgres", "digest_runs_publish", "digest_runs", start, err)
	if err != nil {
		return fmt.Errorf("mark run published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark run published: run %d not found", id)
	}
	return nil
}

func ignoreNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
