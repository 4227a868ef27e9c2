package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20
)

// WarmProgress prints a single updating line while handles are warmed
type WarmProgress struct {
	mu      sync.Mutex
	printer *Printer
	total   int
	cached  int
	fetched int
	failed  []string
	start   time.Time
	now     func() time.Time
	verbose bool
}

// NewWarmProgress tracks total handles. Verbose prints one line per handle
// instead of redrawing the bar.
func NewWarmProgress(p *Printer, total int, verbose bool) *WarmProgress {
	return &WarmProgress{
		printer: p,
		total:   total,
		start:   time.Now(),
		now:     time.Now,
		verbose: verbose,
	}
}

// Cached records a handle that was already live in the cache
func (w *WarmProgress) Cached(handle string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.cached++
	w.update(w.printer.paint(Dim, "= "+handle+" (cached)"))
}

// Fetched records a handle fetched from upstream
func (w *WarmProgress) Fetched(handle string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.fetched++
	w.update(w.printer.paint(Green, "✓ "+handle))
}

// Failed records a handle that could not be warmed
func (w *WarmProgress) Failed(handle string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.failed = append(w.failed, handle)
	w.update(w.printer.paint(Red, fmt.Sprintf("✗ %s: %v", handle, err)))
}

// Done returns how many handles have been recorded
func (w *WarmProgress) Done() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done()
}

// Complete prints the summary
func (w *WarmProgress) Complete() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.verbose {
		fmt.Fprintln(w.printer.w)
	}
	fmt.Fprintf(w.printer.w, "%s Warmed %d profiles in %s\n",
		w.printer.paint(Green, "✓"),
		w.done()-len(w.failed),
		formatDuration(w.now().Sub(w.start)),
	)
	fmt.Fprintf(w.printer.w, "  %s %d fetched, %d already cached\n",
		w.printer.paint(Dim, "•"), w.fetched, w.cached)
	if len(w.failed) > 0 {
		fmt.Fprintf(w.printer.w, "  %s %d failed: %s\n",
			w.printer.paint(Dim, "•"), len(w.failed), strings.Join(w.failed, ", "))
	}
}

func (w *WarmProgress) done() int {
	return w.cached + w.fetched + len(w.failed)
}

func (w *WarmProgress) update(detail string) {
	if w.verbose {
		fmt.Fprintln(w.printer.w, detail)
		return
	}

	line := fmt.Sprintf("[%s] %d/%d • %s", Bar(w.done(), w.total), w.done(), w.total, w.eta())
	if n := len(w.failed); n > 0 {
		line += " • " + w.printer.paint(Red, fmt.Sprintf("%d failed", n))
	}
	fmt.Fprintf(w.printer.w, "\r%s\r%s", strings.Repeat(" ", 80), line)
}

// eta estimates time remaining from the average pace so far
func (w *WarmProgress) eta() string {
	done := w.done()
	if done == 0 || done >= w.total {
		return "--"
	}
	perItem := w.now().Sub(w.start) / time.Duration(done)
	return formatDuration(perItem * time.Duration(w.total-done))
}

// Bar renders a fixed width progress bar for done out of total
func Bar(done, total int) string {
	filled := 0
	if total > 0 {
		filled = done * barWidth / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
