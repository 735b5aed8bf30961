package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistriesAreIsolated(t *testing.T) {
	reg1, m1 := NewRegistry()
	reg2, m2 := NewRegistry()

	m1.ObserveProbe("py2", true)
	m1.ObserveProbe("py2", false)
	m2.ObserveProbe("py3", true)

	n1, err := testutil.GatherAndCount(reg1, "afterpkg_index_probes_total")
	if err != nil {
		t.Fatalf("gather reg1: %v", err)
	}
	n2, err := testutil.GatherAndCount(reg2, "afterpkg_index_probes_total")
	if err != nil {
		t.Fatalf("gather reg2: %v", err)
	}
	if n1 != 2 || n2 != 1 {
		t.Errorf("series counts = %d/%d, want 2/1", n1, n2)
	}

	if got := testutil.ToFloat64(m1.IndexProbes.WithLabelValues("py2", "hit")); got != 1 {
		t.Errorf("py2 hits in first registry = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m2.IndexProbes.WithLabelValues("py3", "hit")); got != 1 {
		t.Errorf("py3 hits in second registry = %v, want 1", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg, m := NewRegistry()
	m.ObserveProbe("py3", true)

	path := filepath.Join(t.TempDir(), "node-exporter", "afterpkg.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `afterpkg_index_probes_total{index="py3",result="hit"} 1`) {
		t.Errorf("textfile missing probe sample:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE afterpkg_index_probes_total counter") {
		t.Errorf("textfile missing TYPE line:\n%s", out)
	}
}

func TestWriteTextfileBadDir(t *testing.T) {
	reg, _ := NewRegistry()
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteTextfile(filepath.Join(blocker, "afterpkg.prom"), reg); err == nil {
		t.Error("expected error when parent is a regular file")
	}
}
