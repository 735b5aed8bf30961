package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the record encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat maps "json" (any case) to FormatJSON and everything else to
// FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// ParseLevel accepts the slog level names plus "warning". Unknown input
// yields slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Config holds configuration for the logger.
type Config struct {
	Level  slog.Level
	Format Format

	// Output defaults to stderr; stdout carries queue output.
	Output io.Writer

	AddSource bool

	// Service and Version are attached to JSON records when non-empty.
	Service string
	Version string
}

// DefaultConfig logs at INFO in text format to stderr.
func DefaultConfig() Config {
	return Config{
		Level:   slog.LevelInfo,
		Format:  FormatText,
		Output:  os.Stderr,
		Service: "afterpkg",
	}
}

// FromStrings builds a Config from the level and format names used in the
// configuration file and on the command line.
func FromStrings(level, format string) Config {
	cfg := DefaultConfig()
	cfg.Level = ParseLevel(level)
	cfg.Format = ParseFormat(format)
	if cfg.Level == slog.LevelDebug {
		cfg.AddSource = true
	}
	return cfg
}
