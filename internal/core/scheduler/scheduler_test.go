package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/core/llm"
	"github.com/markdave123-py/Coursewise/internal/models"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// memJobs mimics the conditional updates of the SQL store.
type memJobs struct {
	mu     sync.Mutex
	jobs   map[string]*models.IngestionJob
	stages map[string][]models.IngestionStage
	// beforeClaim runs inside ClaimJob before the precondition is checked.
	beforeClaim func(id string)
}

func newMemJobs(jobs ...models.IngestionJob) *memJobs {
	s := &memJobs{jobs: map[string]*models.IngestionJob{}, stages: map[string][]models.IngestionStage{}}
	for i := range jobs {
		j := jobs[i]
		s.jobs[j.ID] = &j
	}
	return s
}

func (s *memJobs) ListClaimableJobs(_ context.Context, cutoff time.Time, limit int) ([]models.IngestionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.IngestionJob
	for _, j := range s.jobs {
		if j.ClaimableAt(cutoff) {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memJobs) ClaimJob(_ context.Context, id string, observed models.JobStatus, cutoff, now time.Time) (bool, error) {
	if s.beforeClaim != nil {
		s.beforeClaim(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if j.Status != observed || (j.LockedAt != nil && !j.LockedAt.Before(cutoff)) {
		return false, nil
	}
	j.Status = models.JobProcessing
	j.LockedAt = &now
	j.Attempts++
	return true, nil
}

func (s *memJobs) TransitionJob(_ context.Context, id string, from, to models.JobStatus, lastError *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if j.Status != from {
		return false, nil
	}
	j.Status = to
	j.LockedAt = nil
	j.LastError = lastError
	return true, nil
}

func (s *memJobs) SetJobStage(_ context.Context, id string, stage models.IngestionStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[id] = append(s.stages[id], stage)
	st := string(stage)
	s.jobs[id].Stage = &st
	return nil
}

func (s *memJobs) get(id string) models.IngestionJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type memMaterials struct {
	mu        sync.Mutex
	materials map[string]*models.Material
}

func (m *memMaterials) CreateMaterialWithJob(context.Context, *models.Material, *models.IngestionJob) error {
	return nil
}

func (m *memMaterials) GetMaterial(_ context.Context, id string) (*models.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mat, ok := m.materials[id]
	if !ok {
		return nil, nil
	}
	cp := *mat
	return &cp, nil
}

func (m *memMaterials) UpdateMaterialStatus(_ context.Context, id string, status models.MaterialStatus, meta models.MaterialMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.materials[id].Status = status
	m.materials[id].Metadata = meta
	return nil
}

// scriptedProcessor returns a fixed error per material and records the order of calls.
type scriptedProcessor struct {
	mu    sync.Mutex
	errs  map[string]error
	order []string
}

func (p *scriptedProcessor) ProcessJob(ctx context.Context, job models.IngestionJob, onStage core.StageFunc) error {
	p.mu.Lock()
	p.order = append(p.order, job.ID)
	p.mu.Unlock()
	onStage(ctx, models.StageDownload)
	return p.errs[job.MaterialID]
}

func pendingJob(id string, created time.Duration) models.IngestionJob {
	return models.IngestionJob{
		ID: id, MaterialID: "mat-" + id, ClassID: "c1",
		Status: models.JobPending, CreatedAt: t0.Add(created),
	}
}

func materialsFor(jobs ...models.IngestionJob) *memMaterials {
	m := &memMaterials{materials: map[string]*models.Material{}}
	for _, j := range jobs {
		m.materials[j.MaterialID] = &models.Material{ID: j.MaterialID, Status: models.MaterialPending}
	}
	return m
}

func newTestScheduler(jobs *memJobs, mats *memMaterials, proc JobProcessor, cfg Config) *Scheduler {
	s := New(jobs, mats, proc, cfg, nil)
	s.now = func() time.Time { return t0.Add(time.Hour) }
	return s
}

func TestRunOnceProcessesOldestFirstWithinBatch(t *testing.T) {
	a, b, c := pendingJob("a", 3*time.Minute), pendingJob("b", time.Minute), pendingJob("c", 2*time.Minute)
	jobs := newMemJobs(a, b, c)
	proc := &scriptedProcessor{}
	s := newTestScheduler(jobs, materialsFor(a, b, c), proc, Config{BatchSize: 2, MaxAttempts: 5})

	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)
	assert.Empty(t, sum.Failures)
	assert.Equal(t, []string{"b", "c"}, proc.order)

	assert.Equal(t, models.JobDone, jobs.get("b").Status)
	assert.Equal(t, 1, jobs.get("b").Attempts)
	assert.Nil(t, jobs.get("b").LockedAt)
	assert.Equal(t, []models.IngestionStage{models.StageDownload}, jobs.stages["b"])
	assert.Equal(t, models.JobPending, jobs.get("a").Status)
}

func TestClaimIsExclusive(t *testing.T) {
	jobs := newMemJobs(pendingJob("a", 0))
	now := t0.Add(time.Hour)
	cutoff := now.Add(-15 * time.Minute)

	first, err := jobs.ClaimJob(context.Background(), "a", models.JobPending, cutoff, now)
	require.NoError(t, err)
	second, err := jobs.ClaimJob(context.Background(), "a", models.JobPending, cutoff, now)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, 1, jobs.get("a").Attempts)
}

func TestRunOnceSkipsJobClaimedElsewhere(t *testing.T) {
	a := pendingJob("a", 0)
	jobs := newMemJobs(a)
	// another invocation wins the race between listing and claiming
	jobs.beforeClaim = func(id string) {
		jobs.mu.Lock()
		defer jobs.mu.Unlock()
		now := t0.Add(time.Hour)
		jobs.jobs[id].Status = models.JobProcessing
		jobs.jobs[id].LockedAt = &now
	}
	proc := &scriptedProcessor{}
	s := newTestScheduler(jobs, materialsFor(a), proc, Config{})

	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Processed)
	assert.Empty(t, sum.Failures)
	assert.Empty(t, proc.order)
}

func TestConcurrentInvocationsProcessEachJobOnce(t *testing.T) {
	var all []models.IngestionJob
	for i := 0; i < 6; i++ {
		all = append(all, pendingJob(fmt.Sprintf("j%d", i), time.Duration(i)*time.Minute))
	}
	jobs := newMemJobs(all...)
	mats := materialsFor(all...)
	proc := &scriptedProcessor{}

	var wg sync.WaitGroup
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := newTestScheduler(jobs, mats, proc, Config{BatchSize: 6})
			_, _ = s.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	seen := map[string]int{}
	for _, id := range proc.order {
		seen[id]++
	}
	assert.Len(t, seen, 6)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
		assert.Equal(t, models.JobDone, jobs.get(id).Status)
	}
}

func TestTransientFailureBelowCapRetries(t *testing.T) {
	j := pendingJob("a", 0)
	j.Status = models.JobRetry
	j.Attempts = 3
	jobs := newMemJobs(j)
	mats := materialsFor(j)
	proc := &scriptedProcessor{errs: map[string]error{j.MaterialID: errors.New("gemini embed: 503 unavailable")}}
	s := newTestScheduler(jobs, mats, proc, Config{MaxAttempts: 5})

	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Failures, 1)
	assert.Contains(t, sum.Failures[0], "503 unavailable")

	got := jobs.get("a")
	assert.Equal(t, 4, got.Attempts)
	assert.Equal(t, models.JobRetry, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, models.MaterialPending, mats.materials[j.MaterialID].Status)
}

func TestTransientFailureAttemptCap(t *testing.T) {
	tests := []struct {
		name        string
		stored      int
		wantJob     models.JobStatus
		wantMat     models.MaterialStatus
		wantAttempt int
	}{
		{"one below cap retries", 4, models.JobRetry, models.MaterialPending, 5},
		{"at cap fails", 5, models.JobFailed, models.MaterialFailed, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := pendingJob("a", 0)
			j.Status = models.JobRetry
			j.Attempts = tt.stored
			jobs := newMemJobs(j)
			mats := materialsFor(j)
			proc := &scriptedProcessor{errs: map[string]error{j.MaterialID: errors.New("timeout")}}
			s := newTestScheduler(jobs, mats, proc, Config{MaxAttempts: 5})

			_, err := s.RunOnce(context.Background())
			require.NoError(t, err)
			got := jobs.get("a")
			assert.Equal(t, tt.wantJob, got.Status)
			assert.Equal(t, tt.wantAttempt, got.Attempts)
			assert.Equal(t, tt.wantMat, mats.materials[j.MaterialID].Status)
		})
	}
}

func TestTerminalFailureFailsOnFirstAttempt(t *testing.T) {
	j := pendingJob("a", 0)
	jobs := newMemJobs(j)
	mats := materialsFor(j)
	mats.materials[j.MaterialID].Metadata.Warnings = []string{"earlier"}
	cfgErr := fmt.Errorf("embed chunks: %w", &llm.ConfigurationError{Capability: llm.CapabilityEmbedding})
	proc := &scriptedProcessor{errs: map[string]error{j.MaterialID: cfgErr}}
	s := newTestScheduler(jobs, mats, proc, Config{MaxAttempts: 5})

	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Failures, 1)
	assert.Contains(t, sum.Failures[0], "No embedding providers are configured.")

	got := jobs.get("a")
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, models.JobFailed, got.Status)

	mat := mats.materials[j.MaterialID]
	assert.Equal(t, models.MaterialFailed, mat.Status)
	assert.Equal(t, []string{"earlier", "Ingestion failed: embed chunks: No embedding providers are configured."}, mat.Metadata.Warnings)
}

type terminalErr struct{}

func (terminalErr) Error() string  { return "embedding dimension mismatch: got 768, want 1536" }
func (terminalErr) Terminal() bool { return true }

func TestTerminalErrorTypeFailsImmediately(t *testing.T) {
	j := pendingJob("a", 0)
	jobs := newMemJobs(j)
	proc := &scriptedProcessor{errs: map[string]error{j.MaterialID: fmt.Errorf("embed: %w", terminalErr{})}}
	s := newTestScheduler(jobs, materialsFor(j), proc, Config{MaxAttempts: 5})

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, jobs.get("a").Status)
}

func TestStaleLockIsReclaimed(t *testing.T) {
	stale := t0
	fresh := t0.Add(55 * time.Minute)
	crashed := pendingJob("crashed", 0)
	crashed.Status = models.JobProcessing
	crashed.LockedAt = &stale
	crashed.Attempts = 1
	busy := pendingJob("busy", time.Minute)
	busy.Status = models.JobProcessing
	busy.LockedAt = &fresh

	jobs := newMemJobs(crashed, busy)
	proc := &scriptedProcessor{}
	s := newTestScheduler(jobs, materialsFor(crashed, busy), proc, Config{LockTimeout: 15 * time.Minute})

	sum, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, []string{"crashed"}, proc.order)
	assert.Equal(t, 2, jobs.get("crashed").Attempts)
	assert.Equal(t, models.JobProcessing, jobs.get("busy").Status)
}

func TestShouldFail(t *testing.T) {
	transient := errors.New("network")
	terminal := &llm.ConfigurationError{Capability: llm.CapabilityChat}

	assert.False(t, shouldFail(4, 5, transient))
	assert.False(t, shouldFail(5, 5, transient))
	assert.True(t, shouldFail(6, 5, transient))
	assert.True(t, shouldFail(1, 5, terminal))
	assert.True(t, shouldFail(1, 5, fmt.Errorf("wrapped: %w", terminal)))
}

// ctxJobs fails job updates once their context is done, like the SQL store.
type ctxJobs struct {
	*memJobs
}

func (s ctxJobs) TransitionJob(ctx context.Context, id string, from, to models.JobStatus, lastError *string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.memJobs.TransitionJob(ctx, id, from, to, lastError)
}

type cancellingProcessor struct {
	cancel context.CancelFunc
}

func (p cancellingProcessor) ProcessJob(ctx context.Context, _ models.IngestionJob, _ core.StageFunc) error {
	p.cancel()
	return ctx.Err()
}

func TestCancelledRunStillRecordsJobOutcome(t *testing.T) {
	a, b := pendingJob("a", 0), pendingJob("b", time.Minute)
	jobs := newMemJobs(a, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestScheduler(jobs, materialsFor(a, b), nil, Config{MaxAttempts: 5})
	s.jobs = ctxJobs{jobs}
	s.processor = cancellingProcessor{cancel: cancel}

	sum, err := s.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, sum.Failures, 1)
	assert.NotContains(t, sum.Failures[0], "mark job")

	got := jobs.get("a")
	assert.Equal(t, models.JobRetry, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, models.JobPending, jobs.get("b").Status)
}
