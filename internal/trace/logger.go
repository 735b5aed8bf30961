package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/afterpkg/internal/build"
	"github.com/felixgeelhaar/afterpkg/internal/log"
)

// Logger appends events to a trace file. It is safe for concurrent use.
type Logger struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	written int
	failed  bool
}

// Open creates (or appends to) the trace file at path.
func Open(path string, logger *log.Logger) (*Logger, error) {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	return &Logger{
		path:   path,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Path returns the trace file location.
func (l *Logger) Path() string { return l.path }

// Log writes one event.
func (l *Logger) Log(ev *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to write trace event: %w", err)
	}
	l.written++
	if l.written%10 == 0 {
		if err := l.file.Sync(); err != nil {
			l.logger.Warn("failed to sync trace file", "path", l.path, "error", err.Error())
		}
	}
	return nil
}

// Observe records a scheduler event; it satisfies build.Observer. Only the
// first write error is reported, later events are dropped silently.
func (l *Logger) Observe(e build.Event) {
	if err := l.Log(FromBuild(e, l.now())); err != nil {
		l.mu.Lock()
		first := !l.failed
		l.failed = true
		l.mu.Unlock()
		if first {
			l.logger.Warn("trace disabled after write error", "path", l.path, "error", err.Error())
		}
	}
}

// Written is the number of events recorded so far.
func (l *Logger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Close flushes and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

// Load reads a trace file back.
func Load(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}
