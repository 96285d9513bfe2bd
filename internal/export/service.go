package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for a
// user's completed translations.
type Service struct {
	jobsRepo    repository.JobRepository
	resultsRepo repository.ResultRepository
	logger      *slog.Logger
}

func NewService(jobsRepo repository.JobRepository, resultsRepo repository.ResultRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobsRepo, resultsRepo: resultsRepo, logger: logger}
}

// ExportResultsXLSX returns an XLSX workbook (as bytes) with one row per
// completed job for the given user.
func (s *Service) ExportResultsXLSX(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobsRepo.ListByUser(ctx, userID, constants.JobStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Translations"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Completed At",
		"Filename",
		"Source",
		"Target",
		"Blocks",
		"Confidence",
		"Original (excerpt)",
		"Translation (excerpt)",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range jobs {
		res, err := s.resultsRepo.GetByJobID(ctx, j.ID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				s.logger.Warn("completed job without result, skipping", "job_id", j.ID)
				continue
			}
			return nil, fmt.Errorf("load result for job %s: %w", j.ID, err)
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		if j.CompletedAt != nil {
			write(1, j.CompletedAt.UTC().Format("2006-01-02 15:04"))
		} else {
			write(1, "")
		}
		write(2, res.Meta.Filename)
		write(3, res.SourceLanguage)
		write(4, res.TargetLanguage)
		write(5, res.Meta.BlockCount)
		write(6, fmt.Sprintf("%.2f", res.Confidence))
		write(7, truncate(res.OriginalText, 140))
		write(8, truncate(res.TranslatedText, 140))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "B", 32)
	_ = f.SetColWidth(sheet, "C", "D", 8)
	_ = f.SetColWidth(sheet, "E", "F", 11)
	_ = f.SetColWidth(sheet, "G", "H", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID.String(),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
