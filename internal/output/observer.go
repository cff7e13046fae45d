package output

import (
	"fmt"

	"github.com/tanq16/rangepull/internal/progress"
	"github.com/tanq16/rangepull/internal/rangeutil"
)

// BoardObserver adapts a single Board job slot to the engine's
// Observer contract, so a batch runner can drive one Board from many
// concurrent Engine instances.
type BoardObserver struct {
	board *Board
	id    int
}

func (o *BoardObserver) Progress(s progress.Snapshot) {
	o.board.setProgressLine(o.id, s.Downloaded, s.Total, s.SpeedBps)
}

func (o *BoardObserver) Log(message string) {
	o.board.addStreamLine(o.id, message)
}

func (o *BoardObserver) Finished(success bool, message string) {
	o.board.complete(o.id, success, message)
}

// ConsoleObserver renders a single transfer's progress as one
// redrawn-in-place terminal line, for the interactive `get` command.
type ConsoleObserver struct {
	debug bool
}

// NewConsoleObserver creates an observer for one foreground transfer.
// When debug is true, log events are printed as they arrive; otherwise
// they are discarded and only progress and the final outcome are shown.
func NewConsoleObserver(debug bool) *ConsoleObserver {
	return &ConsoleObserver{debug: debug}
}

func (o *ConsoleObserver) Progress(s progress.Snapshot) {
	total := s.Total
	label := fmt.Sprintf("%s / unknown", rangeutil.FormatBytes(uint64(s.Downloaded)))
	if total > 0 {
		label = fmt.Sprintf("%s / %s", rangeutil.FormatBytes(uint64(s.Downloaded)), rangeutil.FormatBytes(uint64(total)))
	} else {
		total = 1 // PrintProgressBar needs a positive denominator; percentage is indeterminate anyway
	}
	fmt.Print("\r\033[K" + ProgressLine(s.Downloaded, total, s.SpeedBps, label))
}

func (o *ConsoleObserver) Log(message string) {
	if o.debug {
		fmt.Println()
		PrintDebug(message)
	}
}

func (o *ConsoleObserver) Finished(success bool, message string) {
	fmt.Println()
	if success {
		PrintSuccess(message)
		return
	}
	PrintError(message)
}
