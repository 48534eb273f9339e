package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// TotalUnknown marks a tracker whose item count cannot be determined ahead
// of time, e.g. when items come from a lazy directory scan.
const TotalUnknown = -1

// Tracker tracks and reports progress of bulk operations.
type Tracker struct {
	writer         io.Writer
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of items to process, or TotalUnknown
// reportInterval: report progress every N items
func NewTracker(writer io.Writer, total, reportInterval int) *Tracker {
	if reportInterval <= 0 {
		reportInterval = 1
	}

	return &Tracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *Tracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Update sets the current progress to the specified value.
func (p *Tracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if p.total != TotalUnknown && current > p.total {
		current = p.total
	}

	p.current = current

	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Increment increases the current progress by the specified amount.
func (p *Tracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.current += delta
	if p.total != TotalUnknown && p.current > p.total {
		p.current = p.total
	}

	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
}

// Callback adapts the tracker to the executor's progress callback signature.
// The total reported by the executor takes precedence when it is known,
// which lets a tracker started with TotalUnknown pick up a late count.
func (p *Tracker) Callback() func(completed, total int) {
	return func(completed, total int) {
		p.mu.Lock()
		if total != TotalUnknown {
			p.total = total
		}
		p.mu.Unlock()
		p.Update(completed)
	}
}

// Finish marks the operation as complete and prints final progress.
func (p *Tracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if p.total == TotalUnknown {
		p.total = p.current
	}
	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer) // newline after final progress
}

// Elapsed returns the time elapsed since Start was called.
func (p *Tracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *Tracker) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.current) / elapsed.Seconds()

	if p.total == TotalUnknown {
		fmt.Fprintf(p.writer, "\rProgress: %d - %.1f items/s", p.current, rate)
		return
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f items/s",
		p.current, p.total, percentage, rate)
}
