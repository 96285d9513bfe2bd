package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/entity"
)

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) jsonError(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createJobRequest struct {
	UserID  uuid.UUID        `json:"user_id"`
	AssetID uuid.UUID        `json:"asset_id"`
	Config  entity.JobConfig `json:"config"`
}

// CreateJob inserts a pending job for an already-uploaded asset. The config
// is validated up front so a malformed job never reaches the worker.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == uuid.Nil || req.AssetID == uuid.Nil {
		a.jsonError(w, http.StatusBadRequest, "user_id and asset_id are required")
		return
	}

	raw, err := json.Marshal(req.Config)
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid config")
		return
	}
	if _, err := entity.ParseJobConfig(raw); err != nil {
		a.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := a.assets.GetByID(r.Context(), req.AssetID)
	if err != nil {
		if errors.Is(err, common.ErrAssetNotFound) {
			a.jsonError(w, http.StatusNotFound, "asset not found")
			return
		}
		a.logger.Error("asset lookup failed", "asset_id", req.AssetID, "error", err)
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if asset.UserID != req.UserID {
		a.jsonError(w, http.StatusForbidden, "asset does not belong to user")
		return
	}

	job, err := a.jobs.Create(r.Context(), req.UserID, req.AssetID, constants.JobKindTranslate, raw)
	if err != nil {
		a.logger.Error("job create failed", "error", err)
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.json(w, http.StatusCreated, job)
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	status := constants.JobStatus(r.URL.Query().Get("status"))
	jobs, err := a.jobs.ListByUser(r.Context(), userID, status)
	if err != nil {
		a.logger.Error("job list failed", "user_id", userID, "error", err)
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	a.json(w, http.StatusOK, jobs)
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := a.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "job not found")
			return
		}
		a.logger.Error("job lookup failed", "job_id", id, "error", err)
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.json(w, http.StatusOK, job)
}

func (a *App) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	res, err := a.results.GetByJobID(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "no result for job")
			return
		}
		a.logger.Error("result lookup failed", "job_id", id, "error", err)
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) ExportResults(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		a.jsonError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}
	data, err := a.export.ExportResultsXLSX(r.Context(), userID)
	if err != nil {
		a.logger.Error("export failed", "user_id", userID, "error", err)
		a.jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="translations.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
