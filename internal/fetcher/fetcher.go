// Package fetcher downloads one planned chunk into its part file, with
// bounded retry on transient failures.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tanq16/rangepull/internal/httpclient"
	"github.com/tanq16/rangepull/internal/planner"
	"github.com/tanq16/rangepull/internal/progress"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

// Config carries the fields every chunk fetch needs beyond the chunk itself.
type Config struct {
	URL         string // resolved final URL, post-redirect
	OutputPath  string // final artifact path; part files are siblings
	MaxRetries  int
	BaseBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	return c
}

// FailureReason enumerates why a chunk fetch did not complete.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonLengthMismatch    FailureReason = "length_mismatch"
	ReasonProtocolViolation FailureReason = "protocol_violation"
	ReasonHTTPStatus        FailureReason = "http_status"
	ReasonNetwork           FailureReason = "network"
	ReasonCancelled         FailureReason = "cancelled"
)

// Result reports the outcome of fetching one chunk.
type Result struct {
	ID           int
	BytesWritten int64
	PartPath     string
	Reason       FailureReason
	Err          error
}

// Ok reports whether the chunk completed successfully.
func (r Result) Ok() bool { return r.Err == nil }

// PartPath returns the on-disk path for chunk id of outputPath, per the
// "<output>.part<id>" convention.
func PartPath(outputPath string, id int) string {
	return fmt.Sprintf("%s.part%d", outputPath, id)
}

// Fetch downloads chunk into its part file, retrying transient failures
// with exponential backoff; cfg.MaxRetries is the total number of
// attempts, the first one included. Every retry
// truncates and rewrites the part file from scratch.
func Fetch(ctx context.Context, client *httpclient.Client, chunk planner.Chunk, cfg Config, agg *progress.Aggregator) Result {
	cfg = cfg.withDefaults()
	log := rangeutil.GetLogger("fetcher").With().Int("chunk", chunk.ID).Logger()
	partPath := PartPath(cfg.OutputPath, chunk.ID)
	result := Result{ID: chunk.ID, PartPath: partPath}

	var lastErr error
	var lastReason FailureReason
	var lastWritten int64

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := cfg.BaseBackoff * time.Duration(uint(1)<<uint(attempt-1))
			log.Debug().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("retrying chunk after backoff")
			if agg != nil && lastWritten > 0 {
				agg.Add(-lastWritten) // undo the discarded attempt's partial progress
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				result.Err = ctx.Err()
				result.Reason = ReasonCancelled
				return result
			}
		}

		written, err, reason := attemptFetch(ctx, client, cfg.URL, chunk, partPath, agg)
		lastWritten = written
		if err == nil {
			result.BytesWritten = written
			return result
		}
		lastErr = err
		lastReason = reason

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Err = err
			result.Reason = ReasonCancelled
			return result
		}
		permanent := reason != ReasonLengthMismatch && !httpclient.Retryable(err)
		if permanent {
			log.Debug().Err(err).Msg("permanent failure, not retrying")
			break
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("chunk attempt failed")
	}

	if agg != nil && lastWritten > 0 {
		agg.Add(-lastWritten)
	}
	result.Err = fmt.Errorf("chunk %d failed after retries: %w", chunk.ID, lastErr)
	result.Reason = lastReason
	os.Remove(partPath)
	return result
}

// attemptFetch performs a single try at downloading chunk, always
// truncating partPath first so retries start clean.
func attemptFetch(ctx context.Context, client *httpclient.Client, url string, chunk planner.Chunk, partPath string, agg *progress.Aggregator) (int64, error, FailureReason) {
	file, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("open part file: %w", err), ReasonNetwork
	}
	defer file.Close()

	expected := chunk.Length()
	var written int64

	outcome, err := client.Get(ctx, url, chunk.RangeHeader(), file, func(n int64) bool {
		written += n
		if agg != nil {
			agg.Add(n)
		}
		return true
	})
	if err != nil {
		var status *httpclient.HTTPStatusError
		if errors.As(err, &status) {
			return written, err, ReasonHTTPStatus
		}
		return written, err, ReasonNetwork
	}
	if outcome.StatusCode == 200 {
		// origin ignored the Range header and returned the full body: a
		// protocol violation, not an acceptable substitute.
		return written, fmt.Errorf("origin returned 200 to a range request"), ReasonProtocolViolation
	}
	if outcome.StatusCode != 206 {
		return written, &httpclient.HTTPStatusError{Code: outcome.StatusCode}, ReasonHTTPStatus
	}
	if written != expected {
		return written, fmt.Errorf("length mismatch: expected %d bytes, wrote %d", expected, written), ReasonLengthMismatch
	}
	return written, nil, ReasonNone
}
