package worker

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress tracks a terrain batch: counts, time spent generating and the
// seeds of failed terrains so they can be rerun.
type Progress struct {
	startTime   time.Time
	output      io.Writer
	total       int
	completed   int
	failed      int
	generating  time.Duration // Sum of Result.Elapsed
	lastName    string
	failedSeeds []uint32
	mu          sync.RWMutex
	enabled     bool
}

// NewProgress creates a tracker for total terrains. Output goes to stderr
// when enabled.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		output:    os.Stderr,
		enabled:   enabled,
	}
}

// Record folds one finished terrain into the tracker.
func (p *Progress) Record(r Result, completed, total, failed int) {
	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.failed = failed
	p.generating += r.Elapsed
	p.lastName = r.Task.Name
	if r.Err != nil {
		p.failedSeeds = append(p.failedSeeds, r.Task.Seed)
	}
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Record
}

// FailedSeeds returns the seeds of failed terrains in ascending order.
func (p *Progress) FailedSeeds() []uint32 {
	p.mu.RLock()
	seeds := slices.Clone(p.failedSeeds)
	p.mu.RUnlock()
	slices.Sort(seeds)
	return seeds
}

// averageLocked is the mean generation time per finished terrain.
func (p *Progress) averageLocked() time.Duration {
	if p.completed == 0 {
		return 0
	}
	return p.generating / time.Duration(p.completed)
}

// Print writes the progress line: bar, counts, mean time per terrain, the
// terrain that finished last and the ETA.
func (p *Progress) Print() {
	p.mu.RLock()
	completed, total, failed := p.completed, p.total, p.failed
	avg := p.averageLocked()
	last := p.lastName
	elapsed := time.Since(p.startTime)
	p.mu.RUnlock()

	filled := 0
	if total > 0 {
		filled = min(completed*barWidth/total, barWidth)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\r[%s%s] %d/%d terrains",
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), completed, total)
	if failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", failed)
	}
	if avg > 0 {
		fmt.Fprintf(&b, " - %s/terrain", formatDuration(avg))
	}
	if last != "" {
		fmt.Fprintf(&b, " - last %s", last)
	}
	switch {
	case completed >= total:
		fmt.Fprintf(&b, " - Done in %s", formatDuration(elapsed))
	case completed > 0:
		eta := elapsed / time.Duration(completed) * time.Duration(total-completed)
		fmt.Fprintf(&b, " - ETA: %s", formatDuration(eta))
	}
	// Clear leftovers of a longer previous line.
	b.WriteString("          ")

	fmt.Fprint(p.output, b.String())
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary describes the finished batch, listing failed seeds.
func (p *Progress) Summary() string {
	p.mu.RLock()
	completed, total, failed := p.completed, p.total, p.failed
	avg := p.averageLocked()
	elapsed := time.Since(p.startTime)
	p.mu.RUnlock()

	line := fmt.Sprintf("Generated %d/%d terrains in %s (avg %s/terrain)",
		completed-failed, total, formatDuration(elapsed), formatDuration(avg))
	if seeds := p.FailedSeeds(); len(seeds) > 0 {
		parts := make([]string, len(seeds))
		for i, s := range seeds {
			parts[i] = strconv.FormatUint(uint64(s), 10)
		}
		line += fmt.Sprintf("; %d failed, seeds: %s", failed, strings.Join(parts, ", "))
	}
	return line
}

// formatDuration prints sub-second durations in milliseconds and longer
// ones as s, m+s or h+m.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
