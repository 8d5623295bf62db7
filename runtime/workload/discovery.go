package workload

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// excludedDirs mirrors
// original_source/.../agents/resolver.py's SourceResolver.EXCLUDED_DIRS,
// adjusted for a Go tree (vendor/ replaces .venv/, node_modules kept since
// embedders may discover workloads inside a mixed-language repo).
var excludedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	".git":         true,
	".github":      true,
	"__pycache__":  true,
}

func isHiddenOrExcluded(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	return excludedDirs[name]
}

// Discover walks locations in order, asking every registered Loader to
// identify each path it encounters. Location-first deduplication: once a
// name is claimed by an earlier location, a later location's entry with the
// same (case-insensitive) name is skipped with a debug log rather than a
// warning (spec.md §4.7).
func (m *Manager) Discover(ctx context.Context, locations []string) error {
	for _, root := range locations {
		if err := m.discoverLocation(ctx, root); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) discoverLocation(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A location that doesn't exist or isn't readable contributes
			// nothing; discovery of other locations continues.
			return nil
		}
		if path != root && isHiddenOrExcluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		for _, loader := range m.loaders {
			if !loader.Identify(path) {
				continue
			}
			def, loadErr := loader.Load(path)
			if loadErr != nil {
				m.logger.Debug(ctx, "workload: failed to load candidate", "path", path, "error", loadErr)
				return nil
			}
			def.Location = root
			m.addDiscovered(ctx, def)
			// A directory claimed as a workload (e.g. a process-backed
			// agent directory) is not also descended into looking for
			// further candidates.
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return nil
	})
}

func (m *Manager) addDiscovered(ctx context.Context, def Definition) {
	key := normalizeName(def.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.defs[key]; ok {
		m.logger.Debug(ctx, "workload: name already claimed by an earlier location, ignoring",
			"name", def.Name, "claimed_at", existing.Location, "ignored_at", def.Location)
		return
	}
	m.defs[key] = def
}
