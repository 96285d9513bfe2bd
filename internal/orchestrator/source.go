package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/repository"
)

// JobSource feeds pending job ids to the orchestrator. How jobs are
// discovered is kept separate from how they are processed; the orchestrator
// composes any number of sources.
type JobSource interface {
	Run(ctx context.Context, emit func(jobID uuid.UUID)) error
}

// PollingSource scans the job table for pending rows at a fixed interval.
// It also re-delivers jobs that were deferred while the worker was at
// capacity.
type PollingSource struct {
	jobs     repository.JobRepository
	interval time.Duration
	log      *slog.Logger
}

func NewPollingSource(jobs repository.JobRepository, interval time.Duration, log *slog.Logger) *PollingSource {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PollingSource{jobs: jobs, interval: interval, log: log}
}

func (s *PollingSource) Run(ctx context.Context, emit func(uuid.UUID)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pending, err := s.jobs.ListByStatus(ctx, constants.JobStatusPending)
			if err != nil {
				s.log.Error("pending scan failed", "error", err)
				continue
			}
			for _, j := range pending {
				emit(j.ID)
			}
		}
	}
}

// ListenSource subscribes to Postgres NOTIFY on the pending-jobs channel.
// The job-creation API (or an insert trigger) is expected to NOTIFY with the
// new job id as payload. The connection is re-acquired on failure.
type ListenSource struct {
	pool    *pgxpool.Pool
	channel string
	log     *slog.Logger
}

func NewListenSource(pool *pgxpool.Pool, channel string, log *slog.Logger) *ListenSource {
	if log == nil {
		log = slog.Default()
	}
	return &ListenSource{pool: pool, channel: channel, log: log}
}

func (s *ListenSource) Run(ctx context.Context, emit func(uuid.UUID)) error {
	for {
		if err := s.listen(ctx, emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("listen connection lost, reconnecting", "channel", s.channel, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (s *ListenSource) listen(ctx context.Context, emit func(uuid.UUID)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "listen "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		return err
	}
	s.log.Info("listening for job notifications", "channel", s.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(n.Payload)
		if err != nil {
			s.log.Warn("ignoring notification with bad payload", "payload", n.Payload)
			continue
		}
		emit(id)
	}
}
