package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry returns a private registry with the afterpkg collectors
// attached. Each invocation gets its own so repeated runs in one process
// (and parallel tests) never collide on registration.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// WriteTextfile writes everything gathered from g to path in the text
// exposition format for the node exporter textfile collector. The
// parent directory is created if needed and the file is replaced
// atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	return prometheus.WriteToTextfile(path, g)
}
