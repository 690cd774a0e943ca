package registry

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/curelab/autoclave/internal/logger"
	autoclaveerrors "github.com/curelab/autoclave/pkg/errors"
)

// SpecRegistry resolves specification ids to their parsed documents. Parsed
// specifications are cached by id; invalidation is explicit via Reload.
type SpecRegistry struct {
	root string
	log  *logger.Logger

	mu    sync.RWMutex
	index map[string]string // spec id -> directory name
	cache map[string]*Specification
}

type indexDocument struct {
	Specifications map[string]struct {
		Dir       string   `yaml:"dir"`
		Materials []string `yaml:"materials,omitempty"`
	} `yaml:"specifications"`
}

// NewSpecRegistry creates a registry over the specifications root.
func NewSpecRegistry(root string, log *logger.Logger) (*SpecRegistry, error) {
	r := &SpecRegistry{root: root, log: log}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload drops the cache and re-reads the discovery index. When index.yaml
// exists it is authoritative; otherwise every directory is treated as a
// self-describing specification named after itself.
func (r *SpecRegistry) Reload() error {
	index := make(map[string]string)

	indexPath := filepath.Join(r.root, "index.yaml")
	data, err := os.ReadFile(indexPath)
	switch {
	case err == nil:
		var doc indexDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return autoclaveerrors.NewConfigError(indexPath, err)
		}
		for id, entry := range doc.Specifications {
			dir := entry.Dir
			if dir == "" {
				dir = id
			}
			index[id] = dir
		}
	case os.IsNotExist(err):
		entries, err := os.ReadDir(r.root)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return autoclaveerrors.NewConfigError(r.root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				index[entry.Name()] = entry.Name()
			}
		}
	default:
		return autoclaveerrors.NewConfigError(indexPath, err)
	}

	r.mu.Lock()
	r.index = index
	r.cache = make(map[string]*Specification)
	r.mu.Unlock()
	return nil
}

// ListSpecifications returns the known specification ids, sorted.
func (r *SpecRegistry) ListSpecifications() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.index))
	for id := range r.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadSpecification resolves an id to its parsed Specification, serving
// repeats from the cache.
func (r *SpecRegistry) LoadSpecification(id string) (*Specification, error) {
	r.mu.RLock()
	if spec, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return spec, nil
	}
	dir, known := r.index[id]
	r.mu.RUnlock()

	if !known {
		return nil, autoclaveerrors.NewSpecNotFoundError(id)
	}

	spec, err := r.loadFromDisk(id, filepath.Join(r.root, dir))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = spec
	r.mu.Unlock()

	r.log.WithFields(map[string]any{"specification": id}).Debug("loaded specification")
	return spec, nil
}

// Individual specification documents are optional; a missing one simply
// contributes nothing. A missing directory means the spec does not exist.
func (r *SpecRegistry) loadFromDisk(id, dir string) (*Specification, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, autoclaveerrors.NewSpecNotFoundError(id)
	}

	spec := &Specification{ID: id}

	metaPath := filepath.Join(dir, "specification.yaml")
	if data, err := os.ReadFile(metaPath); err == nil {
		var metadata map[string]any
		if err := yaml.Unmarshal(data, &metadata); err != nil {
			return nil, autoclaveerrors.NewConfigError(metaPath, err)
		}
		spec.Metadata = metadata
		if v, ok := metadata["non_contiguous_stages"].(bool); ok {
			spec.NonContiguousStages = v
		}
	} else if !os.IsNotExist(err) {
		return nil, autoclaveerrors.NewConfigError(metaPath, err)
	}

	rulesPath := filepath.Join(dir, "rules.yaml")
	if data, err := os.ReadFile(rulesPath); err == nil {
		var doc struct {
			Rules []RuleDef `yaml:"rules"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, autoclaveerrors.NewConfigError(rulesPath, err)
		}
		spec.Rules = doc.Rules
	} else if !os.IsNotExist(err) {
		return nil, autoclaveerrors.NewConfigError(rulesPath, err)
	}

	stagesPath := filepath.Join(dir, "stages.yaml")
	if data, err := os.ReadFile(stagesPath); err == nil {
		var doc struct {
			Stages []StageDef `yaml:"stages"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, autoclaveerrors.NewConfigError(stagesPath, err)
		}
		spec.Stages = doc.Stages
	} else if !os.IsNotExist(err) {
		return nil, autoclaveerrors.NewConfigError(stagesPath, err)
	}

	calcsPath := filepath.Join(dir, "calculations.yaml")
	if data, err := os.ReadFile(calcsPath); err == nil {
		var doc struct {
			Calculations []CalcDef `yaml:"calculations"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, autoclaveerrors.NewConfigError(calcsPath, err)
		}
		spec.Calculations = doc.Calculations
	} else if !os.IsNotExist(err) {
		return nil, autoclaveerrors.NewConfigError(calcsPath, err)
	}

	sortStages(spec.Stages)
	return spec, nil
}

func sortStages(stages []StageDef) {
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].DisplayOrder < stages[j].DisplayOrder
	})
}
