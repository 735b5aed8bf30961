package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// DefaultPyPIURL is the public Python package index.
const DefaultPyPIURL = "https://pypi.org"

// Project is the subset of the PyPI JSON API this tool needs.
type Project struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Summary string `json:"summary"`
}

type projectResponse struct {
	Info Project `json:"info"`
}

// PyPIClient answers whether a project exists on a PyPI-compatible index.
// Results, including misses, are memoized for the client's lifetime.
type PyPIClient struct {
	client  *Client
	baseURL string

	mu    sync.Mutex
	cache map[string]*Project
}

// NewPyPIClient returns a client for baseURL (DefaultPyPIURL when empty).
func NewPyPIClient(c *Client, baseURL string) *PyPIClient {
	if baseURL == "" {
		baseURL = DefaultPyPIURL
	}
	return &PyPIClient{
		client:  c,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		cache:   make(map[string]*Project),
	}
}

// Project fetches /pypi/<name>/json. A missing project returns ErrNotFound.
func (p *PyPIClient) Project(ctx context.Context, name string) (*Project, error) {
	p.mu.Lock()
	cached, ok := p.cache[name]
	p.mu.Unlock()
	if ok {
		if cached == nil {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return cached, nil
	}

	resp, err := p.client.get(ctx, fmt.Sprintf("%s/pypi/%s/json", p.baseURL, url.PathEscape(name)))
	if errors.Is(err, ErrNotFound) {
		p.store(name, nil)
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding pypi response for %s: %w", name, err)
	}
	if body.Info.Name == "" {
		body.Info.Name = name
	}
	p.store(name, &body.Info)
	return &body.Info, nil
}

func (p *PyPIClient) store(name string, project *Project) {
	p.mu.Lock()
	p.cache[name] = project
	p.mu.Unlock()
}

// Exists reports whether name is published on the index.
func (p *PyPIClient) Exists(ctx context.Context, name string) (bool, error) {
	_, err := p.Project(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
