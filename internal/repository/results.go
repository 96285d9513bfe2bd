package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/entity"
)

type ResultRepository interface {
	// Insert writes a result exactly once per job. A second insert for the
	// same job is a persistence failure, never an update.
	Insert(ctx context.Context, res *entity.AnalysisResult) error
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.AnalysisResult, error)
}

type resultRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewResultRepository(pool *pgxpool.Pool, log *slog.Logger) ResultRepository {
	if log == nil {
		log = slog.Default()
	}
	return &resultRepo{pool: pool, log: log}
}

func (r *resultRepo) Insert(ctx context.Context, res *entity.AnalysisResult) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	blocks, err := json.Marshal(res.Blocks)
	if err != nil {
		return fmt.Errorf("marshal blocks: %w", err)
	}
	meta, err := json.Marshal(res.Meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		insert into analysis_results
			(id, job_id, original_text, translated_text, source_language,
			 target_language, confidence, detected_language, text_blocks, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		res.ID, res.JobID, res.OriginalText, res.TranslatedText, res.SourceLanguage,
		res.TargetLanguage, res.Confidence, nullable(res.DetectedLanguage), blocks, meta)
	if err != nil {
		r.log.Error("result insert failed", "job_id", res.JobID, "err", err)
		return fmt.Errorf("%w: insert result: %v", common.ErrPersistenceFailure, err)
	}
	r.log.Info("result persisted", "job_id", res.JobID, "blocks", len(res.Blocks), "confidence", res.Confidence)
	return nil
}

func (r *resultRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*entity.AnalysisResult, error) {
	row := r.pool.QueryRow(ctx, `
		select id, job_id, original_text, translated_text, source_language,
		       target_language, confidence, detected_language, text_blocks, metadata, created_at
		from analysis_results where job_id = $1`, jobID)

	var (
		res      entity.AnalysisResult
		detected *string
		blocks   []byte
		meta     []byte
	)
	err := row.Scan(&res.ID, &res.JobID, &res.OriginalText, &res.TranslatedText,
		&res.SourceLanguage, &res.TargetLanguage, &res.Confidence, &detected,
		&blocks, &meta, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.log.Error("result lookup failed", "job_id", jobID, "err", err)
		return nil, err
	}
	if detected != nil {
		res.DetectedLanguage = *detected
	}
	if err := json.Unmarshal(blocks, &res.Blocks); err != nil {
		return nil, fmt.Errorf("decode text_blocks: %w", err)
	}
	if err := json.Unmarshal(meta, &res.Meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &res, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
