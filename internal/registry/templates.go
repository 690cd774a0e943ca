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

// TemplateRegistry loads and indexes the template documents of every process
// family under the templates root. It is read-only after construction.
type TemplateRegistry struct {
	root string
	log  *logger.Logger

	mu           sync.RWMutex
	byKind       map[TemplateKind]map[string]Template
	sensorGroups map[string][]SensorGroupDef
}

var kindDocuments = map[TemplateKind]string{
	KindCalculation: "calculation_templates.yaml",
	KindRule:        "rule_templates.yaml",
	KindStage:       "stage_templates.yaml",
}

// NewTemplateRegistry creates a registry and loads every family found under
// root. A missing root directory yields an empty registry, not an error.
func NewTemplateRegistry(root string, log *logger.Logger) (*TemplateRegistry, error) {
	r := &TemplateRegistry{root: root, log: log}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads all template documents from disk.
func (r *TemplateRegistry) Reload() error {
	byKind := map[TemplateKind]map[string]Template{
		KindCalculation: {},
		KindRule:        {},
		KindStage:       {},
	}
	sensorGroups := make(map[string][]SensorGroupDef)

	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			r.mu.Lock()
			r.byKind = byKind
			r.sensorGroups = sensorGroups
			r.mu.Unlock()
			return nil
		}
		return autoclaveerrors.NewConfigError(r.root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		family := entry.Name()
		familyDir := filepath.Join(r.root, family)

		for kind, document := range kindDocuments {
			path := filepath.Join(familyDir, document)
			templates, err := loadTemplateDocument(path, kind)
			if err != nil {
				return err
			}
			for _, tmpl := range templates {
				byKind[kind][tmpl.ID] = tmpl
			}
		}

		groups, err := loadSensorGroupDocument(filepath.Join(familyDir, "sensor_groups.yaml"))
		if err != nil {
			return err
		}
		if groups != nil {
			sensorGroups[family] = groups
		}

		r.log.WithFields(map[string]any{"family": family}).Debug("loaded template family")
	}

	r.mu.Lock()
	r.byKind = byKind
	r.sensorGroups = sensorGroups
	r.mu.Unlock()
	return nil
}

// ListTemplates returns the ids registered under a kind, sorted.
func (r *TemplateRegistry) ListTemplates(kind TemplateKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byKind[kind]))
	for id := range r.byKind[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetTemplate resolves a template by kind and id.
func (r *TemplateRegistry) GetTemplate(kind TemplateKind, id string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.byKind[kind][id]
	if !ok {
		return Template{}, autoclaveerrors.NewUnresolvedTemplateError(string(kind), id)
	}
	return tmpl, nil
}

// SensorGroups returns the declared sensor groups of a process family.
func (r *TemplateRegistry) SensorGroups(family string) []SensorGroupDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sensorGroups[family]
}

func loadTemplateDocument(path string, kind TemplateKind) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, autoclaveerrors.NewConfigError(path, err)
	}

	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, autoclaveerrors.NewConfigError(path, err)
	}

	for i := range doc.Templates {
		doc.Templates[i].Kind = kind
	}
	return doc.Templates, nil
}

func loadSensorGroupDocument(path string) ([]SensorGroupDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, autoclaveerrors.NewConfigError(path, err)
	}

	var doc struct {
		SensorGroups []SensorGroupDef `yaml:"sensor_groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, autoclaveerrors.NewConfigError(path, err)
	}
	return doc.SensorGroups, nil
}
