package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// ManifestFileName is the manifest file looked up inside per-agent
// directories.
const ManifestFileName = "AGENT.md"

// RegistryOptions holds dependency + configuration overrides passed to
// NewRegistry().
type RegistryOptions struct {
	// Logger receives registry diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Registry loads and serves agent manifests from a directory. Each agent
// lives either as <dir>/<id>.md or <dir>/<id>/AGENT.md. Public methods are
// safe for concurrent use; mutations write through to disk.
type Registry struct {
	dir    string
	logger logging.Logger

	mu     sync.RWMutex
	agents map[string]Manifest
}

// NewRegistry constructs a registry rooted at dir and loads all manifests
// found there. A missing directory yields an empty registry rather than an
// error so first-run setups work without a separate init step.
func NewRegistry(dir string, optFns ...func(o *RegistryOptions)) (*Registry, error) {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{dir: dir, logger: opts.Logger, agents: make(map[string]Manifest)}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read agents dir: %w", err)
	}

	for _, entry := range entries {
		var path, fallbackID string
		if entry.IsDir() {
			path = filepath.Join(r.dir, entry.Name(), ManifestFileName)
			fallbackID = entry.Name()
			if _, statErr := os.Stat(path); statErr != nil {
				continue
			}
		} else if strings.HasSuffix(entry.Name(), ".md") {
			path = filepath.Join(r.dir, entry.Name())
			fallbackID = strings.TrimSuffix(entry.Name(), ".md")
		} else {
			continue
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read manifest %s: %w", path, err)
		}
		m, err := ParseManifest(raw, fallbackID)
		if err != nil {
			r.logger.Warn("skipping unparsable manifest path=%s err=%v", path, err)
			continue
		}
		r.agents[m.Descriptor.ID] = m
	}
	return nil
}

// Get returns the descriptor for a normalized agent ref.
func (r *Registry) Get(ref string) (core.AgentDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.agents[core.NormalizeAgentID(ref)]
	return m.Descriptor, ok
}

// GetManifest returns the full manifest (descriptor + body) for an agent.
func (r *Registry) GetManifest(ref string) (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.agents[core.NormalizeAgentID(ref)]
	return m, ok
}

// List returns all descriptors ordered by priority (higher first) with id as
// the tie-break.
func (r *Registry) List() []core.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.AgentDescriptor, 0, len(r.agents))
	for _, m := range r.agents {
		out = append(out, m.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Discoverable returns the discoverable subset of List() used for routing.
func (r *Registry) Discoverable() []core.AgentDescriptor {
	all := r.List()
	out := all[:0]
	for _, d := range all {
		if d.Discoverable {
			out = append(out, d)
		}
	}
	return out
}

// Save writes a manifest to disk and registers it. The descriptor id is
// normalized before use.
func (r *Registry) Save(m Manifest) error {
	m.Descriptor.ID = core.NormalizeAgentID(m.Descriptor.ID)
	if m.Descriptor.ID == "" {
		return fmt.Errorf("manifest has no usable agent id")
	}
	if m.Descriptor.Priority == 0 {
		m.Descriptor.Priority = core.DefaultPriority
	}

	dir := filepath.Join(r.dir, m.Descriptor.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, m.Format(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[m.Descriptor.ID] = m
	return nil
}

// Delete removes an agent's manifest from disk and the registry.
func (r *Registry) Delete(ref string) error {
	id := core.NormalizeAgentID(ref)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrAgentNotFound, id)
	}
	delete(r.agents, id)

	// Manifest may live in either layout.
	if err := os.RemoveAll(filepath.Join(r.dir, id)); err != nil {
		return fmt.Errorf("remove agent dir: %w", err)
	}
	if err := os.Remove(filepath.Join(r.dir, id+".md")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	return nil
}
