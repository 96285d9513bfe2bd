package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/entity"
)

type AssetRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Asset, error)
}

type assetRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewAssetRepository(pool *pgxpool.Pool, log *slog.Logger) AssetRepository {
	if log == nil {
		log = slog.Default()
	}
	return &assetRepo{pool: pool, log: log}
}

func (r *assetRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Asset, error) {
	row := r.pool.QueryRow(ctx, `
		select id, user_id, filename, content_type, file_size, storage_path, uploaded_at
		from assets where id = $1`, id)
	var a entity.Asset
	err := row.Scan(&a.ID, &a.UserID, &a.Filename, &a.ContentType, &a.FileSize, &a.StoragePath, &a.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrAssetNotFound
	}
	if err != nil {
		r.log.Error("asset lookup failed", "asset_id", id, "err", err)
		return nil, err
	}
	return &a, nil
}
