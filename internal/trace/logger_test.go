package trace

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/build"
	"github.com/felixgeelhaar/afterpkg/internal/exec"
	"github.com/felixgeelhaar/afterpkg/internal/graph"
	"github.com/felixgeelhaar/afterpkg/internal/log"
)

func node(name string) *graph.Node {
	return &graph.Node{Key: graph.Key{Category: "system", Name: name}}
}

func TestFromBuild(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	done := FromBuild(build.Event{
		Kind:   build.EventDone,
		Node:   node("runc"),
		Slot:   2,
		Result: exec.Result{Step: exec.StepInstall, Duration: 90 * time.Second},
	}, at)
	if done.Kind != "done" || done.Package != "runc" || done.Category != "system" || done.Slot != 2 {
		t.Errorf("unexpected done event: %+v", done)
	}
	if done.Duration == nil || *done.Duration != 90*time.Second || done.Step != "install" {
		t.Errorf("done event should carry step and duration: %+v", done)
	}

	failed := FromBuild(build.Event{
		Kind:   build.EventFailed,
		Node:   node("golang"),
		Result: exec.Result{Step: exec.StepBuild, ExitCode: 2},
		Err:    errors.New("boom"),
	}, at)
	if failed.Level != "error" || failed.ExitCode != 2 || failed.Error != "boom" {
		t.Errorf("unexpected failed event: %+v", failed)
	}

	skipped := FromBuild(build.Event{Kind: build.EventSkipped, Node: node("docker"), Reason: "dependency failed: golang"}, at)
	if skipped.Level != "warning" || skipped.Reason != "dependency failed: golang" || skipped.Duration != nil {
		t.Errorf("unexpected skipped event: %+v", skipped)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "trace.jsonl")
	l, err := Open(path, log.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	l.Observe(build.Event{Kind: build.EventStarted, Node: node("golang"), Slot: 1})
	l.Observe(build.Event{Kind: build.EventDone, Node: node("golang"), Slot: 1, Result: exec.Result{Step: exec.StepBuild}})
	if l.Written() != 2 {
		t.Errorf("Written() = %d, want 2", l.Written())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != "started" || events[1].Kind != "done" || events[1].Package != "golang" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	for i := 0; i < 2; i++ {
		l, err := Open(path, nil)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if err := l.Log(&Event{Kind: "started", Package: "tini"}); err != nil {
			t.Fatalf("Log: %v", err)
		}
		_ = l.Close()
	}

	events, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2 after reopening", len(events))
	}
}

func TestLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	l, err := Open(path, log.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Observe(build.Event{Kind: build.EventStarted, Node: node("containerd")})
		}()
	}
	wg.Wait()
	_ = l.Close()

	events, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events) != 25 {
		t.Errorf("got %d events, want 25", len(events))
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"kind\":\"done\"}\nnot json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed line should fail")
	}
}

func TestOpenError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filepath.Join(blocker, "trace.jsonl"), nil); err == nil {
		t.Error("Open under a regular file should fail")
	}
}
