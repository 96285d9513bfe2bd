package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/entity"
)

type JobRepository interface {
	Create(ctx context.Context, userID, assetID uuid.UUID, kind constants.JobKind, config json.RawMessage) (*entity.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListByStatus(ctx context.Context, status constants.JobStatus) ([]*entity.Job, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status constants.JobStatus) ([]*entity.Job, error)
	// MarkProcessing transitions pending -> processing and stamps started_at.
	// Returns false when the row was not pending (already claimed or terminal).
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	// RequeueStale returns processing jobs older than staleAfter to pending.
	RequeueStale(ctx context.Context, staleAfter time.Duration) (int, error)
}

const jobColumns = `id, user_id, asset_id, kind, status, config, error_message, created_at, started_at, completed_at`

type jobRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewJobRepository(pool *pgxpool.Pool, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{pool: pool, log: log}
}

func (r *jobRepo) Create(ctx context.Context, userID, assetID uuid.UUID, kind constants.JobKind, config json.RawMessage) (*entity.Job, error) {
	row := r.pool.QueryRow(ctx, `
		insert into jobs (id, user_id, asset_id, kind, status, config, created_at)
		values ($1, $2, $3, $4, $5, $6, now())
		returning `+jobColumns,
		uuid.New(), userID, assetID, string(kind), string(constants.JobStatusPending), config)
	job, err := scanJob(row)
	if err != nil {
		r.log.Error("job create failed", "user_id", userID, "asset_id", assetID, "err", err)
		return nil, err
	}
	r.log.Info("job created", "job_id", job.ID, "asset_id", assetID, "kind", kind)
	return job, nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row := r.pool.QueryRow(ctx, `select `+jobColumns+` from jobs where id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return job, err
}

func (r *jobRepo) ListByStatus(ctx context.Context, status constants.JobStatus) ([]*entity.Job, error) {
	rows, err := r.pool.Query(ctx, `
		select `+jobColumns+` from jobs
		where status = $1
		order by created_at asc`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *jobRepo) ListByUser(ctx context.Context, userID uuid.UUID, status constants.JobStatus) ([]*entity.Job, error) {
	q := `select ` + jobColumns + ` from jobs where user_id = $1 order by created_at desc`
	args := []any{userID}
	if status != "" {
		q = `select ` + jobColumns + ` from jobs where user_id = $1 and status = $2 order by created_at desc`
		args = append(args, string(status))
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *jobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		update jobs
		set status = $2, started_at = now(), error_message = null
		where id = $1 and status = $3`,
		id, string(constants.JobStatusProcessing), string(constants.JobStatusPending))
	if err != nil {
		r.log.Error("job mark processing failed", "job_id", id, "err", err)
		return false, err
	}
	claimed := tag.RowsAffected() == 1
	if claimed {
		r.log.Info("job processing", "job_id", id)
	}
	return claimed, nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		update jobs
		set status = $2, completed_at = now()
		where id = $1 and status = $3`,
		id, string(constants.JobStatusCompleted), string(constants.JobStatusProcessing))
	if err != nil {
		r.log.Error("job mark completed failed", "job_id", id, "err", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.WrapError(common.ErrPersistenceFailure, "job not in processing state")
	}
	r.log.Info("job completed", "job_id", id)
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `
		update jobs
		set status = $2, completed_at = now(), error_message = $3
		where id = $1 and status in ($4, $5)`,
		id, string(constants.JobStatusFailed), message,
		string(constants.JobStatusProcessing), string(constants.JobStatusPending))
	if err != nil {
		r.log.Error("job mark failed failed", "job_id", id, "err", err)
		return err
	}
	r.log.Warn("job failed", "job_id", id, "error", message)
	return nil
}

func (r *jobRepo) RequeueStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		update jobs
		set status = $1, started_at = null
		where status = $2 and started_at < now() - $3::interval`,
		string(constants.JobStatusPending), string(constants.JobStatusProcessing),
		staleAfter.String())
	if err != nil {
		r.log.Error("stale requeue failed", "err", err)
		return 0, err
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		r.log.Warn("requeued stale jobs", "count", n, "stale_after", staleAfter)
	}
	return n, nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		j      entity.Job
		kind   string
		status string
	)
	err := row.Scan(&j.ID, &j.UserID, &j.AssetID, &kind, &status, &j.Config,
		&j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	j.Kind = constants.JobKind(kind)
	j.Status = constants.JobStatus(status)
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*entity.Job, error) {
	var out []*entity.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
