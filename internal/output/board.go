package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/tanq16/rangepull/internal/rangeutil"
)

// JobOutput tracks one batch entry's display state.
type JobOutput struct {
	ID          int
	URL         string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
	Index       int
}

// ErrorReport is one job's terminal failure, kept for the end-of-run summary.
type ErrorReport struct {
	JobURL string
	Error  error
	Time   time.Time
}

// Board renders a live-updating multi-line status display for a batch
// of concurrent jobs, one line (plus an optional progress stream line)
// per job, redrawn in place on a fixed tick.
type Board struct {
	outputs     map[int]*JobOutput
	mutex       sync.RWMutex
	numLines    int
	maxStreams  int
	errors      []ErrorReport
	doneCh      chan struct{}
	pauseCh     chan bool
	isPaused    bool
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
}

// NewBoard creates an empty Board ready to register jobs.
func NewBoard() *Board {
	return &Board{
		outputs:     make(map[int]*JobOutput),
		maxStreams:  10,
		doneCh:      make(chan struct{}),
		pauseCh:     make(chan bool),
		displayTick: 300 * time.Millisecond,
	}
}

// RegisterJob adds a new tracked job for url and returns its board ID.
func (b *Board) RegisterJob(url string) int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.jobCount++
	b.outputs[b.jobCount] = &JobOutput{
		ID:          b.jobCount,
		URL:         url,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Index:       b.jobCount,
	}
	return b.jobCount
}

// Observer returns an engine.Observer that reports into this board
// under the given job ID.
func (b *Board) Observer(id int) *BoardObserver {
	return &BoardObserver{board: b, id: id}
}

func (b *Board) setStatus(id int, status string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if info, ok := b.outputs[id]; ok {
		info.Status = status
		info.LastUpdated = time.Now()
	}
}

func (b *Board) addStreamLine(id int, line string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	info, ok := b.outputs[id]
	if !ok {
		return
	}
	wrapped := wrapText(line, 2+4)
	info.StreamLines = append(info.StreamLines, wrapped...)
	if len(info.StreamLines) > b.maxStreams {
		info.StreamLines = info.StreamLines[len(info.StreamLines)-b.maxStreams:]
	}
	info.LastUpdated = time.Now()
}

func (b *Board) setProgressLine(id int, downloaded, total int64, speedBps float64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	info, ok := b.outputs[id]
	if !ok {
		return
	}
	speed := rangeutil.FormatBytes(uint64(speedBps))
	speed = speed[:len(speed)-1] + "B/s"
	bar := PrintProgressBar(max(0, downloaded), total, 30)
	info.StreamLines = []string{fmt.Sprintf("%s%s", bar, debugStyle.Render(speed))}
	info.LastUpdated = time.Now()
}

func (b *Board) complete(id int, success bool, message string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	info, ok := b.outputs[id]
	if !ok {
		return
	}
	info.StreamLines = nil
	info.Message = message
	info.Complete = true
	info.LastUpdated = time.Now()
	if success {
		info.Status = "success"
		return
	}
	info.Status = "error"
	info.Error = fmt.Errorf("%s", message)
	b.errors = append(b.errors, ErrorReport{JobURL: info.URL, Error: info.Error, Time: time.Now()})
}

func (b *Board) sortJobs() (active, pending, completed []*JobOutput) {
	all := make([]*JobOutput, 0, len(b.outputs))
	for _, info := range b.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	for _, j := range all {
		switch {
		case j.Complete:
			completed = append(completed, j)
		case j.Status == "pending" && j.Message == "":
			pending = append(pending, j)
		default:
			active = append(active, j)
		}
	}
	return active, pending, completed
}

func statusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styledMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "warning":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (b *Board) updateDisplay() {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	_, termHeight, _ := term.GetSize(int(os.Stdout.Fd()))
	if termHeight <= 0 {
		termHeight = 24
	}
	available := termHeight - 3

	if b.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", b.numLines)
	}

	lines := 0
	active, pending, completed := b.sortJobs()

	needed := len(completed)
	for _, j := range active {
		needed += 1 + len(j.StreamLines)
	}
	for _, j := range pending {
		needed += 1 + len(j.StreamLines)
	}
	if needed > available {
		keep := available - (needed - len(completed))
		if keep < 0 {
			keep = 0
		}
		if len(completed) > keep {
			completed = completed[len(completed)-keep:]
		}
	}

	printJob := func(j *JobOutput, elapsed time.Duration) {
		fmt.Printf("%s%s %s %s\n", strings.Repeat(" ", 2), statusIndicator(j.Status), debugStyle.Render(elapsed.String()), styledMessage(j.Status, j.Message))
		lines++
		if len(j.StreamLines) > 0 && lines < available {
			indent := strings.Repeat(" ", 2+4)
			for _, line := range j.StreamLines {
				if lines >= available {
					break
				}
				fmt.Printf("%s%s\n", indent, streamStyle.Render(line))
				lines++
			}
		}
	}

	for _, j := range active {
		if lines >= available {
			break
		}
		elapsed := time.Since(j.StartTime).Round(time.Second)
		printJob(j, elapsed)
	}
	for _, j := range pending {
		if lines >= available {
			break
		}
		fmt.Printf("%s%s %s\n", strings.Repeat(" ", 2), statusIndicator(j.Status), pendingStyle.Render("waiting..."))
		lines++
	}
	if len(completed) > 10 && lines < available {
		PrintInfo(fmt.Sprintf("%s%d jobs completed with hidden status ...", strings.Repeat(" ", 2), len(completed)-8))
		completed = completed[len(completed)-8:]
		lines++
	}
	for _, j := range completed {
		if lines >= available {
			break
		}
		elapsed := j.LastUpdated.Sub(j.StartTime).Round(time.Second)
		printJob(j, elapsed)
	}
	b.numLines = lines
}

// StartDisplay launches the background redraw loop.
func (b *Board) StartDisplay() {
	b.displayWg.Add(1)
	go func() {
		defer b.displayWg.Done()
		ticker := time.NewTicker(b.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !b.isPaused {
					b.updateDisplay()
				}
			case p := <-b.pauseCh:
				b.isPaused = p
			case <-b.doneCh:
				b.updateDisplay()
				b.showSummary()
				return
			}
		}
	}()
}

// StopDisplay halts the redraw loop and prints the final summary.
func (b *Board) StopDisplay() {
	close(b.doneCh)
	b.displayWg.Wait()
}

func (b *Board) showSummary() {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	fmt.Println()
	var success, failures int
	for _, info := range b.outputs {
		if info.Status == "success" {
			success++
		} else if info.Status == "error" {
			failures++
		}
	}
	fmt.Println(strings.Repeat(" ", 2) + success2Style.Render(fmt.Sprintf("completed %d of %d", success, len(b.outputs))))
	if failures > 0 {
		fmt.Println(strings.Repeat(" ", 2) + errorStyle.Render(fmt.Sprintf("failed %d of %d", failures, len(b.outputs))))
	}
	if len(b.errors) > 0 {
		fmt.Println()
		fmt.Println(strings.Repeat(" ", 2) + errorStyle.Bold(true).Render("errors:"))
		for i, e := range b.errors {
			fmt.Printf("%s%s %s %s\n", strings.Repeat(" ", 4), errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05"))), errorStyle.Render(e.JobURL))
			fmt.Printf("%s%s\n", strings.Repeat(" ", 6), errorStyle.Render(e.Error.Error()))
		}
	}
	fmt.Println()
}
