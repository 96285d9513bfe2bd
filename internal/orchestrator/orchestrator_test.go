package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuglot/docuglot/constants"
	"github.com/docuglot/docuglot/internal/analysis"
	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/entity"
	"github.com/docuglot/docuglot/internal/ocr"
	"github.com/docuglot/docuglot/internal/translate"
)

// memStore is an in-memory stand-in for the job, asset, and result
// repositories plus the blob store.
type memStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*entity.Job
	assets  map[uuid.UUID]*entity.Asset
	results map[uuid.UUID]*entity.AnalysisResult
	blobs   map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[uuid.UUID]*entity.Job),
		assets:  make(map[uuid.UUID]*entity.Asset),
		results: make(map[uuid.UUID]*entity.AnalysisResult),
		blobs:   make(map[string][]byte),
	}
}

func (s *memStore) Create(_ context.Context, userID, assetID uuid.UUID, kind constants.JobKind, config json.RawMessage) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &entity.Job{
		ID:        uuid.New(),
		UserID:    userID,
		AssetID:   assetID,
		Kind:      kind,
		Status:    constants.JobStatusPending,
		Config:    config,
		CreatedAt: time.Now(),
	}
	s.jobs[j.ID] = j
	return copyJob(j), nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyJob(j), nil
}

func (s *memStore) ListByStatus(_ context.Context, status constants.JobStatus) ([]*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Job
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, copyJob(j))
		}
	}
	return out, nil
}

func (s *memStore) ListByUser(_ context.Context, userID uuid.UUID, status constants.JobStatus) ([]*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Job
	for _, j := range s.jobs {
		if j.UserID == userID && (status == "" || j.Status == status) {
			out = append(out, copyJob(j))
		}
	}
	return out, nil
}

func (s *memStore) MarkProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != constants.JobStatusPending {
		return false, nil
	}
	now := time.Now()
	j.Status = constants.JobStatusProcessing
	j.StartedAt = &now
	return true, nil
}

func (s *memStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != constants.JobStatusProcessing {
		return common.WrapError(common.ErrPersistenceFailure, "job not in processing state")
	}
	now := time.Now()
	j.Status = constants.JobStatusCompleted
	j.CompletedAt = &now
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return common.ErrNotFound
	}
	if j.Status == constants.JobStatusPending || j.Status == constants.JobStatusProcessing {
		now := time.Now()
		j.Status = constants.JobStatusFailed
		j.CompletedAt = &now
		j.ErrorMessage = &message
	}
	return nil
}

func (s *memStore) RequeueStale(_ context.Context, staleAfter time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-staleAfter)
	n := 0
	for _, j := range s.jobs {
		if j.Status == constants.JobStatusProcessing && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			j.Status = constants.JobStatusPending
			j.StartedAt = nil
			n++
		}
	}
	return n, nil
}

func (s *memStore) GetAsset(_ context.Context, id uuid.UUID) (*entity.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, common.ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) Insert(_ context.Context, res *entity.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[res.JobID]; exists {
		return common.WrapError(common.ErrPersistenceFailure, "result already exists")
	}
	s.results[res.JobID] = res
	return nil
}

func (s *memStore) GetByJobID(_ context.Context, jobID uuid.UUID) (*entity.AnalysisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[jobID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return r, nil
}

func (s *memStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrDownloadFailure, key)
	}
	return b, nil
}

func copyJob(j *entity.Job) *entity.Job {
	cp := *j
	return &cp
}

// assetsFacade narrows memStore to the AssetRepository interface, whose
// GetByID collides with the job repository's.
type assetsFacade struct{ s *memStore }

func (f assetsFacade) GetByID(ctx context.Context, id uuid.UUID) (*entity.Asset, error) {
	return f.s.GetAsset(ctx, id)
}

// scriptTranslator is a deterministic translator with optional gating and
// failure injection.
type scriptTranslator struct {
	gate   chan struct{} // when non-nil, Translate blocks until closed
	failOn string        // fail any request whose text contains this

	mu       sync.Mutex
	calls    int
	inFlight int
	peak     int
}

func (s *scriptTranslator) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return translate.Result{}, ctx.Err()
		}
	}
	if s.failOn != "" && strings.Contains(req.Text, s.failOn) {
		return translate.Result{}, common.WrapError(common.ErrTranslationFailure, "injected provider failure")
	}
	return translate.Result{
		TranslatedText: "[" + req.TargetLanguage + "] " + req.Text,
		Confidence:     0.9,
		SourceLanguage: "en",
		TargetLanguage: req.TargetLanguage,
	}, nil
}

func (s *scriptTranslator) Name() string { return "script" }

func (s *scriptTranslator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptTranslator) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

type harness struct {
	store *memStore
	tr    *scriptTranslator
	orch  *Orchestrator
}

func newHarness(t *testing.T, cfg Config, tr *scriptTranslator) *harness {
	t.Helper()
	store := newMemStore()
	validator, err := analysis.NewValidator()
	require.NoError(t, err)
	orch := New(cfg, nil, store, assetsFacade{store}, store, store,
		ocr.NewMockExtractor(nil), tr, validator)
	return &harness{store: store, tr: tr, orch: orch}
}

// addJob seeds an asset, its blob, and a pending job.
func (h *harness) addJob(t *testing.T, text, config string) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	assetID := uuid.New()
	key := "assets/" + assetID.String() + ".txt"
	h.store.mu.Lock()
	h.store.assets[assetID] = &entity.Asset{
		ID:          assetID,
		UserID:      userID,
		Filename:    "doc.txt",
		ContentType: "text/plain",
		FileSize:    int64(len(text)),
		StoragePath: key,
		UploadedAt:  time.Now(),
	}
	h.store.blobs[key] = []byte(text)
	h.store.mu.Unlock()

	job, err := h.store.Create(context.Background(), userID, assetID, constants.JobKindTranslate, json.RawMessage(config))
	require.NoError(t, err)
	return job.ID
}

func (h *harness) jobStatus(t *testing.T, id uuid.UUID) constants.JobStatus {
	t.Helper()
	j, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return j.Status
}

const waitFor = 5 * time.Second
const tick = 10 * time.Millisecond

func TestOrchestrator_CompletesJob(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "Good morning everyone.\nThe meeting starts at nine.\nPlease bring the signed contract.\n",
		`{"source_language":"auto","target_language":"es"}`)

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusCompleted
	}, waitFor, tick)
	h.orch.Wait()

	res, err := h.store.GetByJobID(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 3)
	assert.Equal(t, "en", res.SourceLanguage)
	assert.Equal(t, "es", res.TargetLanguage)
	for _, b := range res.Blocks {
		assert.NotEmpty(t, b.TranslatedText)
		assert.Contains(t, b.TranslatedText, "[es] ")
	}
	assert.InDelta(t, 0.9, float64(res.Confidence), 1e-6)
	assert.Equal(t, 3, res.Meta.BlockCount)
	assert.Equal(t, "mock", res.Meta.OCREngine)
	assert.Equal(t, "script", res.Meta.TranslationEngine)
	assert.Equal(t, 0, h.orch.ActiveCount(), "slot released after completion")

	j, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.NotNil(t, j.StartedAt)
	assert.NotNil(t, j.CompletedAt)
	assert.Nil(t, j.ErrorMessage)
}

func TestOrchestrator_ExplicitSourcePassedThrough(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "Guten Morgen zusammen.\n", `{"source_language":"de","target_language":"en"}`)

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusCompleted
	}, waitFor, tick)
	h.orch.Wait()
}

func TestOrchestrator_AssetMissingFailsJob(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	job, err := h.store.Create(context.Background(), uuid.New(), uuid.New(), constants.JobKindTranslate,
		json.RawMessage(`{"target_language":"es"}`))
	require.NoError(t, err)

	require.True(t, h.orch.Dispatch(job.ID))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, job.ID) == constants.JobStatusFailed
	}, waitFor, tick)
	h.orch.Wait()

	j, err := h.store.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, j.ErrorMessage)
	assert.Contains(t, *j.ErrorMessage, "asset")

	_, err = h.store.GetByJobID(context.Background(), job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound, "no result persisted for a failed job")
}

func TestOrchestrator_BlobMissingFailsJob(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "some text\n", `{"target_language":"es"}`)
	h.store.mu.Lock()
	h.store.blobs = make(map[string][]byte)
	h.store.mu.Unlock()

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusFailed
	}, waitFor, tick)
	h.orch.Wait()
}

func TestOrchestrator_TranslationFailureFailsJob(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{failOn: "poison"})
	id := h.addJob(t, "first line is fine\nsecond line is poison\nthird line is fine\n",
		`{"target_language":"es"}`)

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusFailed
	}, waitFor, tick)
	h.orch.Wait()

	j, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, j.ErrorMessage)
	assert.Contains(t, *j.ErrorMessage, "injected provider failure")

	_, err = h.store.GetByJobID(context.Background(), id)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOrchestrator_EmptyDocumentFailsJob(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "   \n\t\n", `{"target_language":"es"}`)

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusFailed
	}, waitFor, tick)
	h.orch.Wait()

	assert.Zero(t, h.tr.Calls(), "no translation attempted when extraction finds nothing")
}

func TestOrchestrator_MalformedConfigFailsBeforeSideEffects(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "hello\n", `{"target_language":"zz"}`)

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusFailed
	}, waitFor, tick)
	h.orch.Wait()

	j, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, j.StartedAt, "job never claimed")
	assert.Zero(t, h.tr.Calls())
}

func TestOrchestrator_DuplicateDeliveryIgnored(t *testing.T) {
	gate := make(chan struct{})
	h := newHarness(t, Config{}, &scriptTranslator{gate: gate})
	id := h.addJob(t, "one line\n", `{"target_language":"es"}`)

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool { return h.tr.Calls() == 1 }, waitFor, tick)

	assert.False(t, h.orch.Dispatch(id), "in-flight id is ignored")
	assert.Equal(t, 1, h.orch.ActiveCount())

	close(gate)
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusCompleted
	}, waitFor, tick)
	h.orch.Wait()
	assert.Equal(t, 1, h.tr.Calls(), "pipeline ran exactly once")
}

func TestOrchestrator_ConcurrencyCap(t *testing.T) {
	const maxJobs = 3
	const total = 5
	gate := make(chan struct{})
	h := newHarness(t, Config{MaxConcurrentJobs: maxJobs}, &scriptTranslator{gate: gate})

	ids := make([]uuid.UUID, 0, total)
	for i := 0; i < total; i++ {
		ids = append(ids, h.addJob(t, fmt.Sprintf("document number %d\n", i), `{"target_language":"es"}`))
	}

	started := 0
	for _, id := range ids {
		if h.orch.Dispatch(id) {
			started++
		}
	}
	assert.Equal(t, maxJobs, started, "admissions beyond capacity are deferred")
	assert.Equal(t, maxJobs, h.orch.ActiveCount())

	close(gate)

	// Re-deliver deferred jobs the way a poll tick would until all finish.
	require.Eventually(t, func() bool {
		done := 0
		for _, id := range ids {
			switch h.jobStatus(t, id) {
			case constants.JobStatusCompleted:
				done++
			case constants.JobStatusPending:
				h.orch.Dispatch(id)
			}
		}
		return done == total
	}, waitFor, tick)
	h.orch.Wait()

	assert.LessOrEqual(t, h.tr.Peak(), maxJobs, "never more jobs in flight than the cap")
	assert.Equal(t, 0, h.orch.ActiveCount())
}

func TestOrchestrator_SweepPendingResumesJobs(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	a := h.addJob(t, "left over from a previous run\n", `{"target_language":"fr"}`)
	b := h.addJob(t, "also left over\n", `{"target_language":"fr"}`)

	h.orch.SweepPending(context.Background())
	require.Eventually(t, func() bool {
		return h.jobStatus(t, a) == constants.JobStatusCompleted &&
			h.jobStatus(t, b) == constants.JobStatusCompleted
	}, waitFor, tick)
	h.orch.Wait()
}

func TestOrchestrator_RequeueStaleResumesCrashedJobs(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "stuck in processing\n", `{"target_language":"es"}`)

	// Simulate a worker that crashed mid-job an hour ago.
	h.store.mu.Lock()
	j := h.store.jobs[id]
	j.Status = constants.JobStatusProcessing
	old := time.Now().Add(-time.Hour)
	j.StartedAt = &old
	h.store.mu.Unlock()

	h.orch.RequeueStale(context.Background(), 30*time.Minute)
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusCompleted
	}, waitFor, tick)
	h.orch.Wait()
}

func TestOrchestrator_RunDeliversViaPollingSource(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	h.orch.sources = []JobSource{NewPollingSource(h.store, 10*time.Millisecond, nil)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()

	// Created after startup, so only the poll loop can discover it.
	id := h.addJob(t, "picked up by the poll tick\n", `{"target_language":"es"}`)
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusCompleted
	}, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestOrchestrator_ResumeCompletesJobWithExistingResult(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "already translated once\n", `{"target_language":"es"}`)

	// A previous run persisted the result but died before the status write;
	// the stale sweep has since returned the job to pending.
	require.NoError(t, h.store.Insert(context.Background(), &entity.AnalysisResult{
		JobID:          id,
		OriginalText:   "already translated once",
		TranslatedText: "[es] already translated once",
		SourceLanguage: "en",
		TargetLanguage: "es",
		Confidence:     0.9,
	}))

	require.True(t, h.orch.Dispatch(id))
	require.Eventually(t, func() bool {
		return h.jobStatus(t, id) == constants.JobStatusCompleted
	}, waitFor, tick)
	h.orch.Wait()

	assert.Zero(t, h.tr.Calls(), "pipeline not re-run when a result exists")
	res, err := h.store.GetByJobID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "[es] already translated once", res.TranslatedText)
}

func TestOrchestrator_SkipsNonPendingJob(t *testing.T) {
	h := newHarness(t, Config{}, &scriptTranslator{})
	id := h.addJob(t, "already done\n", `{"target_language":"es"}`)
	h.store.mu.Lock()
	h.store.jobs[id].Status = constants.JobStatusCompleted
	h.store.mu.Unlock()

	require.True(t, h.orch.Dispatch(id), "admission happens before the status check")
	h.orch.Wait()

	assert.Zero(t, h.tr.Calls())
	assert.Equal(t, constants.JobStatusCompleted, h.jobStatus(t, id))
	assert.Equal(t, 0, h.orch.ActiveCount())
}
