package engine

import "github.com/tanq16/rangepull/internal/progress"

// Observer receives the events a front-end needs to render a transfer:
// progress ticks, structured log lines, and the terminal outcome.
// Implementations must return quickly; Progress is called from the
// Aggregator's ticker goroutine.
type Observer interface {
	Progress(progress.Snapshot)
	Log(message string)
	Finished(success bool, message string)
}

// NoopObserver discards every event; useful as a default when a
// caller doesn't care about live feedback.
type NoopObserver struct{}

func (NoopObserver) Progress(progress.Snapshot)        {}
func (NoopObserver) Log(string)                        {}
func (NoopObserver) Finished(success bool, msg string) {}
