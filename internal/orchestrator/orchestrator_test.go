package orchestrator

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfoto/propfoto/internal/colorspace"
	"github.com/propfoto/propfoto/internal/enhance"
	"github.com/propfoto/propfoto/internal/quality"
	"github.com/propfoto/propfoto/internal/storage"
	"github.com/propfoto/propfoto/internal/testutil"
)

type runnerFunc func(data []byte, params enhance.Params) (*enhance.Result, error)

func (f runnerFunc) Run(data []byte, params enhance.Params) (*enhance.Result, error) {
	return f(data, params)
}

func acceptedResult() *enhance.Result {
	return &enhance.Result{
		Bytes:      []byte("jpeg bytes"),
		FinalState: enhance.StateAccepted,
		Verdict:    quality.Verdict{Level: quality.Pass, Score: 0.9},
		Width:      200,
		Height:     150,
	}
}

func testOrchConfig() Config {
	return Config{
		MaxConcurrent:  2,
		RetryBudget:    2,
		RetryBackoff:   time.Millisecond,
		StorageTimeout: time.Second,
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, runner Runner) (*Orchestrator, *storage.MemoryBlobStore, *storage.MemoryMetadataStore) {
	t.Helper()
	blobs := storage.NewMemoryBlobStore()
	meta := storage.NewMemoryMetadataStore()
	orch, err := New(cfg, runner, blobs, meta, nil, nil)
	require.NoError(t, err)
	return orch, blobs, meta
}

func defaultParams(t *testing.T) enhance.Params {
	t.Helper()
	params, ok := enhance.DefaultProfiles().Lookup(enhance.RegionDefault, enhance.SceneInterior)
	require.True(t, ok)
	return params
}

func TestNew_Validation(t *testing.T) {
	blobs := storage.NewMemoryBlobStore()
	meta := storage.NewMemoryMetadataStore()
	runner := runnerFunc(func([]byte, enhance.Params) (*enhance.Result, error) {
		return acceptedResult(), nil
	})

	_, err := New(Config{}, runner, blobs, meta, nil, nil)
	assert.Error(t, err, "zero config fails validation")

	_, err = New(testOrchConfig(), nil, blobs, meta, nil, nil)
	assert.Error(t, err)

	_, err = New(testOrchConfig(), runner, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestSubmit_Validation(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) { return acceptedResult(), nil }))

	_, err := orch.Submit(context.Background(), "", nil, defaultParams(t))
	assert.Error(t, err, "empty batch is refused")

	bad := defaultParams(t)
	bad.Temperature = 999
	_, err = orch.Submit(context.Background(), "", []Image{{Data: []byte("x")}}, bad)
	require.Error(t, err)
	assert.True(t, colorspace.IsParameterError(err), "misconfigured profile is surfaced at submit")
}

func TestBatch_AllAccepted(t *testing.T) {
	orch, blobs, meta := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) { return acceptedResult(), nil }))

	images := []Image{
		{ID: "a", Name: "a.jpg", Data: []byte("a")},
		{ID: "b", Name: "b.jpg", Data: []byte("b")},
		{ID: "c", Name: "c.jpg", Data: []byte("c")},
	}
	batchID, err := orch.Submit(context.Background(), "listing-17", images, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, "listing-17", snap.ListingID)
	assert.Equal(t, 3, snap.Accepted)
	assert.Equal(t, 3, blobs.Len())

	sum, ok := meta.Batch(batchID)
	require.True(t, ok)
	assert.Equal(t, string(StatusCompleted), sum.Status)
	assert.Equal(t, "listing-17", sum.ListingID)
	recs := meta.Images(batchID)
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, "listing-17", rec.ListingID)
		assert.Equal(t, batchID, rec.BatchID)
	}

	data, err := blobs.Get(context.Background(), batchID+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)
}

// End-to-end partial success through the real pipeline: one oversize but
// valid image, one below minimum resolution, one engineered all-black frame.
func TestBatch_PartialCompletionScenario(t *testing.T) {
	pipelineCfg := enhance.DefaultConfig()
	pipelineCfg.MinWidth = 100
	pipelineCfg.MinHeight = 75
	pipelineCfg.MaxWidth = 384
	pipelineCfg.MaxHeight = 216
	pipeline, err := enhance.NewPipeline(pipelineCfg)
	require.NoError(t, err)

	orch, blobs, meta := newTestOrchestrator(t, testOrchConfig(), pipeline)

	images := []Image{
		{ID: "a", Name: "valid_oversize.jpg", Data: testutil.SceneJPEG(t, 400, 300)},
		{ID: "b", Name: "too_small.jpg", Data: testutil.SceneJPEG(t, 80, 60)},
		{ID: "c", Name: "all_black.jpg", Data: testutil.UniformJPEG(t, 200, 150, color.RGBA{0, 0, 0, 255})},
	}
	batchID, err := orch.Submit(context.Background(), "", images, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, StatusPartiallyCompleted, snap.Status)
	assert.Equal(t, 1, snap.Accepted)
	assert.Equal(t, 2, snap.Rejected)
	assert.Equal(t, 0, snap.Errored)

	byID := make(map[string]TaskView)
	for _, task := range snap.Tasks {
		byID[task.ImageID] = task
	}
	assert.Equal(t, TaskAccepted, byID["a"].Status)
	assert.Equal(t, TaskRejected, byID["b"].Status)
	assert.Contains(t, byID["b"].Reason, "resolution")
	assert.Equal(t, TaskRejected, byID["c"].Status)
	assert.Contains(t, byID["c"].Reason, "mean brightness")

	assert.Equal(t, 1, blobs.Len())
	assert.Len(t, meta.Images(batchID), 3)
}

// A task failing transiently on every attempt must reach Errored after
// exactly retry_budget+1 attempts, never more.
func TestBatch_RetryBudgetRespected(t *testing.T) {
	var attempts atomic.Int32
	orch, _, _ := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) {
			attempts.Add(1)
			return nil, &TransientError{Operation: "fetch", Err: errors.New("storage hiccup")}
		}))

	batchID, err := orch.Submit(context.Background(), "",
		[]Image{{ID: "a", Data: []byte("x")}}, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, int32(3), attempts.Load(), "retry_budget=2 means exactly 3 attempts")
	assert.Equal(t, StatusFailed, snap.Status, "nothing succeeded")
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, TaskErrored, snap.Tasks[0].Status)
	assert.Equal(t, 3, snap.Tasks[0].Attempts)
	assert.Contains(t, snap.Tasks[0].Reason, "retry budget exhausted")
}

func TestBatch_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	orch, _, _ := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) {
			if attempts.Add(1) < 3 {
				return nil, &TransientError{Operation: "persist", Err: errors.New("timeout")}
			}
			return acceptedResult(), nil
		}))

	batchID, err := orch.Submit(context.Background(), "",
		[]Image{{ID: "a", Data: []byte("x")}}, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.Tasks[0].Attempts)
}

func TestBatch_NonTransientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	orch, _, _ := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) {
			attempts.Add(1)
			return nil, errors.New("decoder panic guard tripped")
		}))

	batchID, err := orch.Submit(context.Background(), "",
		[]Image{{ID: "a", Data: []byte("x")}}, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, TaskErrored, snap.Tasks[0].Status)
}

// A ParameterError from any task aborts the whole batch: every sibling is
// misconfigured identically.
func TestBatch_ParameterErrorAbortsBatch(t *testing.T) {
	cfg := testOrchConfig()
	cfg.MaxConcurrent = 1
	orch, _, _ := newTestOrchestrator(t, cfg, runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) {
			return nil, &colorspace.ParameterError{
				Operator: "contrast", Parameter: "factor", Value: 9, Min: 0.5, Max: 2,
			}
		}))

	images := []Image{
		{ID: "a", Data: []byte("a")},
		{ID: "b", Data: []byte("b")},
		{ID: "c", Data: []byte("c")},
	}
	batchID, err := orch.Submit(context.Background(), "", images, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, 0, snap.Accepted)
}

func TestBatch_Cancel(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	cfg := testOrchConfig()
	cfg.MaxConcurrent = 1
	orch, _, _ := newTestOrchestrator(t, cfg, runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) {
			started <- struct{}{}
			<-release
			return acceptedResult(), nil
		}))

	images := []Image{
		{ID: "a", Data: []byte("a")},
		{ID: "b", Data: []byte("b")},
		{ID: "c", Data: []byte("c")},
	}
	batchID, err := orch.Submit(context.Background(), "", images, defaultParams(t))
	require.NoError(t, err)

	<-started
	require.True(t, orch.Cancel(batchID))
	close(release)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, snap.Status)
	assert.GreaterOrEqual(t, snap.Accepted, 1, "in-flight work is allowed to finish")
	assert.Positive(t, snap.Pending, "undispatched tasks stay pending")

	assert.False(t, orch.Cancel("nope"))
}

func TestSubmit_GeneratesListingID(t *testing.T) {
	orch, _, meta := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) { return acceptedResult(), nil }))

	batchID, err := orch.Submit(context.Background(), "",
		[]Image{{ID: "a", Data: []byte("x")}}, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	_, parseErr := uuid.Parse(snap.ListingID)
	assert.NoError(t, parseErr, "an omitted listing id is generated")

	sum, ok := meta.Batch(batchID)
	require.True(t, ok)
	assert.Equal(t, snap.ListingID, sum.ListingID)
}

// Cancelling a batch while a task waits out its retry backoff must settle
// the task immediately instead of sleeping through the remaining backoff.
func TestBatch_CancelDuringRetryBackoff(t *testing.T) {
	attempted := make(chan struct{}, 8)
	cfg := testOrchConfig()
	cfg.RetryBackoff = time.Minute
	orch, _, _ := newTestOrchestrator(t, cfg, runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) {
			attempted <- struct{}{}
			return nil, &TransientError{Operation: "run", Err: errors.New("flaky")}
		}))

	batchID, err := orch.Submit(context.Background(), "",
		[]Image{{ID: "a", Data: []byte("x")}}, defaultParams(t))
	require.NoError(t, err)

	<-attempted
	require.True(t, orch.Cancel(batchID))

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := orch.Wait(waitCtx, batchID)
	require.NoError(t, err, "batch must settle well before the minute-long backoff elapses")

	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, TaskErrored, snap.Tasks[0].Status)
	assert.Equal(t, 1, snap.Tasks[0].Attempts)
	assert.Contains(t, snap.Tasks[0].Reason, "cancelled while waiting to retry")
}

// The counter invariant pending+in_flight+accepted+rejected+errored == total
// must hold at every observation point.
func TestSnapshot_CounterInvariant(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) {
			time.Sleep(2 * time.Millisecond)
			return acceptedResult(), nil
		}))

	images := make([]Image, 12)
	for i := range images {
		images[i] = Image{Data: []byte("x")}
	}
	batchID, err := orch.Submit(context.Background(), "", images, defaultParams(t))
	require.NoError(t, err)

	done, ok := orch.Done(batchID)
	require.True(t, ok)

	for {
		snap, ok := orch.Snapshot(batchID)
		require.True(t, ok)
		sum := snap.Pending + snap.InFlight + snap.Accepted + snap.Rejected + snap.Errored
		require.Equal(t, snap.Total, sum)

		select {
		case <-done:
			final, _ := orch.Snapshot(batchID)
			assert.Equal(t, final.Total, final.Accepted)
			return
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestFetch_UsedPerAttempt(t *testing.T) {
	var fetches atomic.Int32
	var runs atomic.Int32
	orch, _, _ := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func(data []byte, _ enhance.Params) (*enhance.Result, error) {
			if runs.Add(1) < 2 {
				return nil, &TransientError{Operation: "run", Err: errors.New("flaky")}
			}
			return acceptedResult(), nil
		}))

	img := Image{
		ID: "a",
		Fetch: func(context.Context) ([]byte, error) {
			fetches.Add(1)
			return []byte("fetched"), nil
		},
	}
	batchID, err := orch.Submit(context.Background(), "", []Image{img}, defaultParams(t))
	require.NoError(t, err)

	snap, err := orch.Wait(context.Background(), batchID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, int32(2), fetches.Load(), "bytes are re-fetched once per attempt")
}

func TestWait_UnknownBatch(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, testOrchConfig(), runnerFunc(
		func([]byte, enhance.Params) (*enhance.Result, error) { return acceptedResult(), nil }))

	_, err := orch.Wait(context.Background(), "missing")
	assert.Error(t, err)

	_, ok := orch.Snapshot("missing")
	assert.False(t, ok)
}
