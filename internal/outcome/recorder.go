// Package outcome records the result of declaration runs: a structured log
// line for every run, and an optional database row when outcome persistence
// is configured.
package outcome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/engine"
)

// DBPool abstracts the pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder reports run outcomes. A nil pool disables persistence; logging
// always happens.
type Recorder struct {
	pool DBPool
	log  *zap.Logger
}

// NewRecorder creates a recorder. pool may be nil when no database is
// configured.
func NewRecorder(pool DBPool, logger *zap.Logger) *Recorder {
	return &Recorder{pool: pool, log: logger.Named("outcome")}
}

const insertSQL = `
        INSERT INTO run_outcomes (run_id, company_id, branch_id, period, status, started_at, finished_at, deltas, failures)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `

// Record logs the outcome and, when persistence is enabled, inserts it. The
// insert failing does not change the run's verdict; it is reported as an
// error so operators notice the missing audit row.
func (r *Recorder) Record(ctx context.Context, companyID, branchID int, period string, out engine.RunOutcome) error {
	fields := []zap.Field{
		zap.String("run_id", out.RunID),
		zap.String("status", string(out.Status)),
		zap.Int("company_id", companyID),
		zap.Int("branch_id", branchID),
		zap.String("period", period),
		zap.Time("started_at", out.StartedAt),
		zap.Time("finished_at", out.FinishedAt),
		zap.Duration("duration", out.FinishedAt.Sub(out.StartedAt)),
	}
	if len(out.Deltas) > 0 {
		fields = append(fields, zap.Any("deltas", out.Deltas))
	}
	if len(out.Failures) > 0 {
		fields = append(fields, zap.Any("failures", out.Failures))
	}

	switch out.Status {
	case engine.StatusSent:
		r.log.Info("Declaration run recorded.", fields...)
	default:
		r.log.Warn("Declaration run recorded.", fields...)
	}

	if r.pool == nil {
		return nil
	}

	deltas, err := json.Marshal(out.Deltas)
	if err != nil {
		return fmt.Errorf("failed to marshal deltas: %w", err)
	}
	failures, err := json.Marshal(out.Failures)
	if err != nil {
		return fmt.Errorf("failed to marshal failures: %w", err)
	}

	if _, err := r.pool.Exec(ctx, insertSQL,
		out.RunID, companyID, branchID, period, string(out.Status),
		out.StartedAt.UTC(), out.FinishedAt.UTC(), deltas, failures); err != nil {
		return fmt.Errorf("failed to persist run outcome: %w", err)
	}
	return nil
}
