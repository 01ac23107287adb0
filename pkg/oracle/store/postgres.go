package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verisage/oracle/pkg/oracle/types"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id            TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    input         TEXT NOT NULL,
    status        TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    started_at    TIMESTAMPTZ,
    completed_at  TIMESTAMPTZ,
    payer_address TEXT,
    tx_hash       TEXT,
    network       TEXT,
    result        JSONB,
    error         TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_completed_at ON jobs (completed_at DESC);
`

const jobColumns = `id, kind, input, status, created_at, started_at, completed_at,
payer_address, tx_hash, network, result, error`

// PostgresStore is the durable JobStore used in production
// deployments. Claim uses FOR UPDATE SKIP LOCKED so concurrent workers
// never take the same job; terminal transitions are guarded by a
// status predicate in the UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and bootstraps the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if _, err := pool.Exec(ctx, jobsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize jobs schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Create(ctx context.Context, kind types.JobKind, input string, payment types.PaymentInfo) (*types.Job, error) {
	job := &types.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Input:     input,
		Status:    types.StatusPending,
		CreatedAt: time.Now().UTC(),
		Payment:   payment,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, kind, input, status, created_at, payer_address, tx_hash, network)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))`,
		job.ID, job.Kind, job.Input, job.Status, job.CreatedAt,
		payment.PayerAddress, payment.TxHash, payment.Network,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) Claim(ctx context.Context) (*types.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $1, started_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		types.StatusProcessing, types.StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) Complete(ctx context.Context, jobID string, result *types.ConsensusResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $1, result = $2, completed_at = now()
		WHERE id = $3 AND status = $4`,
		types.StatusCompleted, resultJSON, jobID, types.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, jobID)
	}
	return nil
}

func (s *PostgresStore) Fail(ctx context.Context, jobID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $1, error = $2, completed_at = now()
		WHERE id = $3 AND status = $4`,
		types.StatusFailed, errMsg, jobID, types.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, jobID)
	}
	return nil
}

// transitionError distinguishes an unknown job from a CAS violation
// after a zero-row terminal update.
func (s *PostgresStore) transitionError(ctx context.Context, jobID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (*types.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) RecentCompleted(ctx context.Context, filter RecentFilter) ([]*types.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1`
	args := []any{types.StatusCompleted}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.ExcludeUncertain {
		args = append(args, types.DecisionUncertain, types.VerdictQuestionable)
		query += fmt.Sprintf(" AND result->>'final_decision' <> CASE kind WHEN 'fact' THEN $%d::text ELSE $%d::text END", len(args)-1, len(args))
	}
	query += " ORDER BY completed_at DESC, created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*types.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE status IN ($1, $2)`,
		types.StatusPending, types.StatusProcessing,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) RecentOutcomes(ctx context.Context, n int) (Outcomes, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status FROM jobs
		WHERE status IN ($1, $2)
		ORDER BY completed_at DESC
		LIMIT $3`,
		types.StatusCompleted, types.StatusFailed, n,
	)
	if err != nil {
		return Outcomes{}, fmt.Errorf("failed to query recent outcomes: %w", err)
	}
	defer rows.Close()

	var out Outcomes
	for rows.Next() {
		var status types.JobStatus
		if err := rows.Scan(&status); err != nil {
			return Outcomes{}, err
		}
		out.Total++
		if status == types.StatusFailed {
			out.Failed++
		}
	}
	return out, rows.Err()
}

func (s *PostgresStore) TrimToLatest(ctx context.Context, keep int) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE id NOT IN (
			SELECT id FROM jobs ORDER BY created_at DESC LIMIT $1
		)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to trim jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*types.Job, error) {
	var (
		job        types.Job
		payer      *string
		txHash     *string
		network    *string
		resultJSON []byte
		errMsg     *string
	)
	err := row.Scan(
		&job.ID, &job.Kind, &job.Input, &job.Status, &job.CreatedAt,
		&job.StartedAt, &job.CompletedAt, &payer, &txHash, &network,
		&resultJSON, &errMsg,
	)
	if err != nil {
		return nil, err
	}
	if payer != nil {
		job.Payment.PayerAddress = *payer
	}
	if txHash != nil {
		job.Payment.TxHash = *txHash
	}
	if network != nil {
		job.Payment.Network = *network
	}
	if len(resultJSON) > 0 {
		var result types.ConsensusResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to decode stored result: %w", err)
		}
		job.Result = &result
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return &job, nil
}
