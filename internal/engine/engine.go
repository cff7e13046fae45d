// Package engine orchestrates probe, plan, concurrent fetch, and merge
// into one download transfer, exposing an async Observer-based API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tanq16/rangepull/internal/fetcher"
	"github.com/tanq16/rangepull/internal/httpclient"
	"github.com/tanq16/rangepull/internal/merger"
	"github.com/tanq16/rangepull/internal/planner"
	"github.com/tanq16/rangepull/internal/pool"
	"github.com/tanq16/rangepull/internal/probe"
	"github.com/tanq16/rangepull/internal/progress"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

const defaultThreadCount = 4
const progressTick = 500 * time.Millisecond

// Engine runs a single transfer at a time. Zero value is ready to use.
type Engine struct {
	mu       sync.Mutex
	state    State
	cancelFn context.CancelFunc
}

// New returns an idle Engine.
func New() *Engine {
	return &Engine{state: Idle}
}

// State reports the Engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Start validates req and, if the Engine is idle, launches the
// transfer in the background and returns immediately. Terminal outcome
// arrives via observer.Finished. Concurrent starts on a busy Engine
// fail fast with ErrBusy.
func (e *Engine) Start(req DownloadRequest, observer Observer) error {
	if req.URL == "" {
		return &InvalidRequest{Reason: "url is empty"}
	}
	if req.OutputPath == "" {
		return &InvalidRequest{Reason: "output path is empty"}
	}
	if req.ThreadCount < 1 {
		req.ThreadCount = defaultThreadCount
	}
	if observer == nil {
		observer = NoopObserver{}
	}

	e.mu.Lock()
	if e.state != "" && e.state != Idle && e.state != Done && e.state != Failed && e.state != Cancelled {
		e.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelFn = cancel
	e.state = Probing
	e.mu.Unlock()

	jobID := uuid.NewString()
	go e.run(ctx, jobID, req, observer)
	return nil
}

// Cancel requests cancellation of the active transfer. Idempotent; a
// no-op when no transfer is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancelFn
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) run(ctx context.Context, jobID string, req DownloadRequest, observer Observer) {
	log := rangeutil.GetLogger("engine").With().Str("job", jobID).Logger()
	client := httpclient.New(req.clientConfig())

	origin, err := probe.Probe(ctx, client, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			e.finish(Cancelled, false, ErrCancelled.Error(), observer)
			return
		}
		log.Error().Err(err).Msg("probe failed")
		e.finish(Failed, false, (&ProbeFailed{Cause: err}).Error(), observer)
		return
	}
	observer.Log(fmt.Sprintf("probed %s: length=%d ranges=%v", origin.FinalURL, origin.ContentLength, origin.SupportsRanges))

	if origin.ContentLength > 0 && probe.LooksLikeMarkup(origin.ContentType) {
		observer.Log(fmt.Sprintf("warning: content-type %q looks like an error page, not binary content", origin.ContentType))
	}

	sink := observerSink{observer: observer}
	total := origin.ContentLength
	if total <= 0 {
		total = -1
	}
	agg := progress.New(total, progressTick, sink)
	agg.StartTicker()
	defer agg.Stop()

	multiCapable := origin.ContentLength > 0 && origin.SupportsRanges && req.ThreadCount > 1
	if !multiCapable {
		e.runSingleStream(ctx, log, client, origin.FinalURL, req, agg, observer)
		return
	}
	e.runMultiChunk(ctx, log, client, origin.FinalURL, origin.ContentLength, req, agg, observer)
}

func (e *Engine) runSingleStream(ctx context.Context, log zerolog.Logger, client *httpclient.Client, finalURL string, req DownloadRequest, agg *progress.Aggregator, observer Observer) {
	e.setState(Fetching)
	file, err := os.OpenFile(req.OutputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		e.finish(Failed, false, (&Io{Cause: err}).Error(), observer)
		return
	}

	outcome, getErr := client.Get(ctx, finalURL, "", file, func(n int64) bool {
		agg.Add(n)
		return true
	})
	closeErr := file.Close()

	if getErr != nil {
		os.Remove(req.OutputPath)
		if errors.Is(getErr, context.Canceled) || errors.Is(getErr, context.DeadlineExceeded) {
			e.finish(Cancelled, false, "cancelled during fallback transfer", observer)
			return
		}
		log.Error().Err(getErr).Msg("fallback transfer failed")
		e.finish(Failed, false, getErr.Error(), observer)
		return
	}
	if closeErr != nil {
		os.Remove(req.OutputPath)
		e.finish(Failed, false, (&Io{Cause: closeErr}).Error(), observer)
		return
	}
	if outcome.StatusCode >= 300 {
		os.Remove(req.OutputPath)
		e.finish(Failed, false, fmt.Sprintf("unexpected status %d", outcome.StatusCode), observer)
		return
	}
	e.finish(Done, true, fmt.Sprintf("downloaded %s in single-stream mode", rangeutil.FormatBytes(uint64(outcome.BytesWritten))), observer)
}

func (e *Engine) runMultiChunk(ctx context.Context, log zerolog.Logger, client *httpclient.Client, finalURL string, contentLength int64, req DownloadRequest, agg *progress.Aggregator, observer Observer) {
	e.setState(Planning)
	plan, err := planner.Build(contentLength, req.ThreadCount)
	if err != nil {
		e.finish(Failed, false, err.Error(), observer)
		return
	}
	if len(plan.Chunks) == 0 {
		if err := os.WriteFile(req.OutputPath, nil, 0644); err != nil {
			e.finish(Failed, false, (&Io{Cause: err}).Error(), observer)
			return
		}
		e.finish(Done, true, "empty resource, wrote zero-length file", observer)
		return
	}

	e.setState(Fetching)
	fetchCfg := fetcher.Config{
		URL:         finalURL,
		OutputPath:  req.OutputPath,
		MaxRetries:  req.MaxRetries,
		BaseBackoff: req.BaseBackoff,
	}
	results := pool.Run(ctx, plan.Chunks, req.ThreadCount,
		func(ctx context.Context, chunk planner.Chunk) fetcher.Result {
			return fetcher.Fetch(ctx, client, chunk, fetchCfg, agg)
		},
		func(r fetcher.Result) bool { return !r.Ok() },
	)

	if ctx.Err() != nil {
		merger.CleanupParts(results)
		e.finish(Cancelled, false, "cancelled during chunk fetch", observer)
		return
	}

	if failure := firstFailure(results); failure != nil {
		log.Error().Int("chunk", failure.ID).Str("reason", string(failure.Reason)).Err(failure.Err).Msg("chunk failed")
		merger.CleanupParts(results)
		e.finish(Failed, false, (&ChunkFailed{ID: failure.ID, Reason: string(failure.Reason), Cause: failure.Err}).Error(), observer)
		return
	}

	e.setState(Merging)
	if err := merger.Merge(req.OutputPath, contentLength, results); err != nil {
		e.finish(Failed, false, (&MergeFailed{Cause: err}).Error(), observer)
		return
	}
	e.finish(Done, true, fmt.Sprintf("downloaded %s across %d chunks", rangeutil.FormatBytes(uint64(contentLength)), len(plan.Chunks)), observer)
}

func firstFailure(results []fetcher.Result) *fetcher.Result {
	var failed []fetcher.Result
	for _, r := range results {
		if !r.Ok() {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })
	// peers cancelled by the pool after the real failure are not reported
	for i := range failed {
		if failed[i].Reason != fetcher.ReasonCancelled {
			return &failed[i]
		}
	}
	return &failed[0]
}

func (e *Engine) finish(state State, success bool, message string, observer Observer) {
	e.setState(state)
	observer.Finished(success, message)
}

type observerSink struct{ observer Observer }

func (s observerSink) OnProgress(snap progress.Snapshot) { s.observer.Progress(snap) }
