package exec

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// slotColors cycle per worker slot; slot 0 keeps the terminal default.
var slotColors = []lipgloss.Color{"", "9", "12", "11", "13", "14"}

// Console multiplexes output from concurrent jobs onto one writer, one
// whole line at a time, each line prefixed with the package (and the
// slot when more than one worker runs).
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	jobs   int
	color  bool
	styles []lipgloss.Style
}

// NewConsole writes to out for a run with the given number of workers.
func NewConsole(out io.Writer, jobs int, color bool) *Console {
	c := &Console{out: out, jobs: jobs, color: color}
	for _, col := range slotColors {
		style := lipgloss.NewStyle()
		if col != "" {
			style = style.Foreground(col)
		}
		c.styles = append(c.styles, style)
	}
	return c
}

// Prefix returns the line prefix for pkg running in slot.
func (c *Console) Prefix(slot int, pkg string) string {
	if c.jobs <= 1 {
		return pkg + ": "
	}
	return fmt.Sprintf("[%d]:%s: ", slot, pkg)
}

func (c *Console) writeLine(slot int, line string) {
	if c.color {
		line = c.styles[slot%len(c.styles)].Render(line)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, line+"\n")
}

// Printf writes one formatted line for pkg.
func (c *Console) Printf(slot int, pkg, format string, args ...any) {
	c.writeLine(slot, c.Prefix(slot, pkg)+fmt.Sprintf(format, args...))
}

// Writer returns a writer that emits complete lines for pkg. Close flushes
// a trailing partial line.
func (c *Console) Writer(slot int, pkg string) io.WriteCloser {
	return &lineWriter{console: c, slot: slot, prefix: c.Prefix(slot, pkg)}
}

type lineWriter struct {
	console *Console
	slot    int
	prefix  string

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line: keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.console.writeLine(w.slot, w.prefix+line[:len(line)-1])
	}
}

func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.console.writeLine(w.slot, w.prefix+w.buf.String())
		w.buf.Reset()
	}
	return nil
}
