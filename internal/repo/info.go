package repo

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Info is the metadata of one SBo package, read from its .info file.
type Info struct {
	Name     string
	Category string
	Version  string
	// Requires keeps the declared order with duplicates and %README% removed.
	Requires   []string
	Downloads  []string
	MD5Sums    []string
	Download64 []string
	MD5Sum64   []string
	// Dir is the package directory inside the repository.
	Dir string
}

// Sources returns the URLs and checksums to fetch on arch, preferring the
// 64-bit specific list on x86_64 when the package declares one.
func (i *Info) Sources(arch string) (urls, md5s []string) {
	if arch == "x86_64" && len(i.Download64) > 0 && !unsupported(i.Download64) {
		return i.Download64, i.MD5Sum64
	}
	return i.Downloads, i.MD5Sums
}

func unsupported(urls []string) bool {
	return len(urls) == 1 && (urls[0] == "UNSUPPORTED" || urls[0] == "UNTESTED")
}

// ignoredRequires never name a real package.
var ignoredRequires = map[string]bool{
	"%README%": true,
	"":         true,
}

// ParseInfo reads KEY="value" assignments with backslash line continuation.
func ParseInfo(r io.Reader) (map[string]string, error) {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(r)

	var pending strings.Builder
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			continue
		}
		pending.WriteString(line)
		logical := strings.TrimSpace(pending.String())
		pending.Reset()

		if logical == "" || strings.HasPrefix(logical, "#") {
			continue
		}
		key, value, ok := strings.Cut(logical, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected KEY=value, got %q", lineNo, logical)
		}
		fields[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read info: %w", err)
	}
	if rest := strings.TrimSpace(pending.String()); rest != "" {
		return nil, fmt.Errorf("line %d: unterminated continuation", lineNo)
	}
	return fields, nil
}

func newInfo(name, category, dir string, fields map[string]string) *Info {
	info := &Info{
		Name:       name,
		Category:   category,
		Version:    fields["VERSION"],
		Downloads:  strings.Fields(fields["DOWNLOAD"]),
		MD5Sums:    strings.Fields(fields["MD5SUM"]),
		Download64: strings.Fields(fields["DOWNLOAD_x86_64"]),
		MD5Sum64:   strings.Fields(fields["MD5SUM_x86_64"]),
		Dir:        dir,
	}

	seen := make(map[string]bool)
	for _, dep := range strings.Fields(fields["REQUIRES"]) {
		if ignoredRequires[dep] || seen[dep] {
			continue
		}
		seen[dep] = true
		info.Requires = append(info.Requires, dep)
	}
	return info
}
