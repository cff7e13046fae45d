package engine

import (
	"errors"
	"strconv"
	"time"

	"github.com/tanq16/rangepull/internal/httpclient"
)

// DownloadRequest describes one transfer to run. It is treated as
// immutable once passed to Start.
type DownloadRequest struct {
	URL              string
	OutputPath       string
	ThreadCount      int
	UserAgent        string
	Headers          map[string]string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepAliveTimeout time.Duration
	ProxyURL         string
	ProxyUsername    string
	ProxyPassword    string
	Insecure         bool
	MaxRetries       int
	BaseBackoff      time.Duration
}

func (r DownloadRequest) clientConfig() httpclient.Config {
	return httpclient.Config{
		ConnectTimeout:   r.ConnectTimeout,
		RequestTimeout:   r.RequestTimeout,
		KeepAliveTimeout: r.KeepAliveTimeout,
		ProxyURL:         r.ProxyURL,
		ProxyUsername:    r.ProxyUsername,
		ProxyPassword:    r.ProxyPassword,
		UserAgent:        r.UserAgent,
		Headers:          r.Headers,
		HighThreadMode:   r.ThreadCount > 8,
		Insecure:         r.Insecure,
	}
}

// State is one point in the Engine's lifecycle.
type State string

const (
	Idle      State = "idle"
	Probing   State = "probing"
	Planning  State = "planning"
	Fetching  State = "fetching"
	Merging   State = "merging"
	Done      State = "done"
	Failed    State = "failed"
	Cancelled State = "cancelled"
)

// ErrBusy is returned by Start when a transfer is already active.
var ErrBusy = errors.New("engine: transfer already in progress")

// InvalidRequest reports a malformed DownloadRequest.
type InvalidRequest struct{ Reason string }

func (e *InvalidRequest) Error() string { return "invalid request: " + e.Reason }

// ProbeFailed wraps a capability probe failure.
type ProbeFailed struct{ Cause error }

func (e *ProbeFailed) Error() string { return "probe failed: " + e.Cause.Error() }
func (e *ProbeFailed) Unwrap() error { return e.Cause }

// ChunkFailed reports the first chunk to exhaust its retry budget.
type ChunkFailed struct {
	ID     int
	Reason string
	Cause  error
}

func (e *ChunkFailed) Error() string {
	return "chunk " + strconv.Itoa(e.ID) + " failed (" + e.Reason + "): " + e.Cause.Error()
}
func (e *ChunkFailed) Unwrap() error { return e.Cause }

// MergeFailed wraps an IO error during concatenation.
type MergeFailed struct{ Cause error }

func (e *MergeFailed) Error() string { return "merge failed: " + e.Cause.Error() }
func (e *MergeFailed) Unwrap() error { return e.Cause }

// ErrCancelled is returned when a transfer ends due to Cancel().
var ErrCancelled = errors.New("engine: transfer cancelled")

// Io wraps an unclassified local IO error.
type Io struct{ Cause error }

func (e *Io) Error() string { return "io error: " + e.Cause.Error() }
func (e *Io) Unwrap() error { return e.Cause }
