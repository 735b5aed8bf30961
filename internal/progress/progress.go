package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/build"
)

// Indicator tracks a build run from scheduler events and displays it,
// either as one status line per event or as an animated bar
type Indicator struct {
	writer      io.Writer
	total       int
	running     int
	completed   int
	failed      int
	skipped     int
	startTime   time.Time
	mu          sync.Mutex
	showSpinner bool
	spinnerIdx  int
	stopChan    chan struct{}
	stopOnce    sync.Once // Ensures Stop() is only called once
	isCI        bool
}

// Config holds configuration for progress indicator
type Config struct {
	Writer      io.Writer
	ShowSpinner bool
	IsCI        bool // Set to true in CI/CD environments to disable fancy output
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewIndicator creates a new progress indicator
func NewIndicator(cfg Config) *Indicator {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	// Auto-detect CI environment
	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}

	return &Indicator{
		writer:      cfg.Writer,
		startTime:   time.Now(),
		showSpinner: cfg.ShowSpinner && !cfg.IsCI,
		stopChan:    make(chan struct{}),
		isCI:        cfg.IsCI,
	}
}

// SetTotal sets the number of packages the run will execute
func (p *Indicator) SetTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = n
}

// Start begins the progress indicator display
func (p *Indicator) Start() {
	if p.showSpinner {
		go p.spinnerLoop()
	}
}

// Stop stops the progress indicator
func (p *Indicator) Stop() {
	p.stopOnce.Do(func() {
		if p.showSpinner {
			close(p.stopChan)
			p.mu.Lock()
			defer p.mu.Unlock()
			// Clear spinner line
			fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", 80))
		}
	})
}

func (p *Indicator) spinnerLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.renderProgress()
			p.spinnerIdx = (p.spinnerIdx + 1) % len(spinnerFrames)
			p.mu.Unlock()
		}
	}
}

// Progress returns the settled fraction of the run
func (p *Indicator) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress()
}

func (p *Indicator) progress() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.completed+p.failed+p.skipped) / float64(p.total)
}

// renderProgress draws the bar; callers hold mu
func (p *Indicator) renderProgress() {
	progress := p.progress()
	elapsed := time.Since(p.startTime)

	var eta string
	if progress > 0 && progress < 1.0 {
		totalEstimated := time.Duration(float64(elapsed) / progress)
		eta = fmt.Sprintf(" | ETA: %s", formatDuration(totalEstimated-elapsed))
	}

	barWidth := 30
	filled := int(float64(barWidth) * progress)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(p.writer, "\r%s [%s] %.1f%% | %d/%d packages | ▶ %d | ✓ %d | ✗ %d | ⊘ %d | %s%s",
		spinnerFrames[p.spinnerIdx],
		bar,
		progress*100,
		p.completed+p.failed+p.skipped,
		p.total,
		p.running,
		p.completed,
		p.failed,
		p.skipped,
		formatDuration(elapsed),
		eta,
	)
}

// Observe updates progress from a scheduler event; it satisfies build.Observer
func (p *Indicator) Observe(e build.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case build.EventStarted:
		p.running++
	case build.EventDone:
		p.running--
		p.completed++
	case build.EventFailed:
		if e.Result.Step != "" {
			p.running--
		}
		p.failed++
	case build.EventSkipped:
		p.skipped++
	}

	if !p.showSpinner {
		p.printEvent(e)
	}
}

// printEvent prints one CI-friendly status line
func (p *Indicator) printEvent(e build.Event) {
	symbol := "⟲"
	switch e.Kind {
	case build.EventStarted:
		symbol = "▶"
	case build.EventDone:
		symbol = "✓"
	case build.EventFailed:
		symbol = "✗"
	case build.EventSkipped:
		symbol = "⊘"
	}

	msg := fmt.Sprintf("%s %s [%s]", symbol, e.Node.Name(), e.Kind)
	switch {
	case e.Kind == build.EventDone:
		msg += fmt.Sprintf(" %s", formatDuration(e.Result.Duration))
	case e.Err != nil:
		msg += fmt.Sprintf(" - %v", e.Err)
	case e.Kind == build.EventFailed:
		msg += fmt.Sprintf(" - exit %d during %s", e.Result.ExitCode, e.Result.Step)
	case e.Reason != "":
		msg += " - " + e.Reason
	}
	if p.total > 0 && e.Kind != build.EventStarted {
		msg += fmt.Sprintf(" (%d/%d)", p.completed+p.failed+p.skipped, p.total)
	}

	fmt.Fprintln(p.writer, msg)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
