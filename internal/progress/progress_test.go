package progress

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/build"
	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
)

func node(name string) *graph.Node {
	return &graph.Node{Key: graph.Key{Category: "system", Name: name}}
}

func TestNewIndicator(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{
		Writer:      buf,
		ShowSpinner: true,
		IsCI:        false,
	})

	if ind.writer != buf {
		t.Error("Writer not set correctly")
	}

	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	if ind := NewIndicator(Config{Writer: buf, ShowSpinner: true}); !ind.showSpinner {
		t.Error("Spinner should be enabled")
	}
}

func TestNewIndicatorCIMode(t *testing.T) {
	ind := NewIndicator(Config{
		Writer:      &bytes.Buffer{},
		ShowSpinner: true,
		IsCI:        true,
	})

	if ind.showSpinner {
		t.Error("Spinner should be disabled in CI mode")
	}

	if !ind.isCI {
		t.Error("IsCI should be true")
	}
}

func TestNewIndicatorDetectsCI(t *testing.T) {
	t.Setenv("CI", "true")
	ind := NewIndicator(Config{Writer: &bytes.Buffer{}, ShowSpinner: true})
	if !ind.isCI || ind.showSpinner {
		t.Error("CI environment should disable the spinner")
	}
}

func TestObserveLines(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{Writer: buf, IsCI: true})
	ind.SetTotal(3)

	events := []struct {
		event build.Event
		want  string
	}{
		{build.Event{Kind: build.EventStarted, Node: node("golang")}, "▶ golang [started]"},
		{build.Event{Kind: build.EventDone, Node: node("golang"), Result: exec.Result{Duration: 90 * time.Second}}, "✓ golang [done] 1m30s (1/3)"},
		{build.Event{Kind: build.EventStarted, Node: node("runc")}, "▶ runc [started]"},
		{build.Event{Kind: build.EventFailed, Node: node("runc"), Result: exec.Result{ExitCode: 2, Step: exec.StepBuild}}, "✗ runc [failed] - exit 2 during build (2/3)"},
		{build.Event{Kind: build.EventSkipped, Node: node("docker"), Reason: "dependency failed: runc"}, "⊘ docker [skipped] - dependency failed: runc (3/3)"},
	}

	for _, tt := range events {
		buf.Reset()
		ind.Observe(tt.event)
		if got := strings.TrimSuffix(buf.String(), "\n"); got != tt.want {
			t.Errorf("line = %q, want %q", got, tt.want)
		}
	}

	if got := ind.Progress(); got != 1.0 {
		t.Errorf("Progress() = %v, want 1", got)
	}
	if ind.running != 0 {
		t.Errorf("running = %d, want 0", ind.running)
	}
}

func TestObserveErrorLine(t *testing.T) {
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{Writer: buf, IsCI: true})

	ind.Observe(build.Event{Kind: build.EventFailed, Node: node("runc"), Err: fmt.Errorf("executor unavailable")})

	if !strings.Contains(buf.String(), "✗ runc [failed] - executor unavailable") {
		t.Errorf("unexpected output %q", buf.String())
	}
	if ind.running != 0 {
		t.Errorf("a failure without a step never started, running = %d", ind.running)
	}
}

func TestSpinnerModeSuppressesLines(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{Writer: buf, ShowSpinner: true})
	ind.SetTotal(2)

	ind.Observe(build.Event{Kind: build.EventStarted, Node: node("golang")})
	if buf.Len() != 0 {
		t.Errorf("spinner mode should not print event lines, got %q", buf.String())
	}

	ind.mu.Lock()
	ind.renderProgress()
	ind.mu.Unlock()
	if !strings.Contains(buf.String(), "0/2 packages") || !strings.Contains(buf.String(), "▶ 1") {
		t.Errorf("unexpected bar %q", buf.String())
	}
}

func TestStartStop(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	buf := &bytes.Buffer{}
	ind := NewIndicator(Config{Writer: buf, ShowSpinner: true})
	ind.SetTotal(1)

	ind.Start()
	time.Sleep(150 * time.Millisecond)
	ind.Stop()
	ind.Stop()
}

func TestProgressWithoutTotal(t *testing.T) {
	ind := NewIndicator(Config{Writer: &bytes.Buffer{}, IsCI: true})
	if ind.Progress() != 0 {
		t.Error("progress without a total should be zero")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "2s"},
		{61 * time.Second, "1m1s"},
		{3*time.Hour + 2*time.Minute + 1*time.Second, "3h2m1s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
