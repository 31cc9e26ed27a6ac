package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed contracts/*.json
var contractsFS embed.FS

// Stage output contract names.
const (
	ScaffoldV1       = "scaffold_v1"
	StarterSectionV1 = "starter_section_v1"
	TestSectionV1    = "test_section_v1"
	LessonSectionV1  = "lesson_section_v1"
	HintPackV1       = "hint_pack_v1"
	ReviewReportV1   = "review_report_v1"
	LessonPlanV1     = "lesson_plan_v1"
	ExercisePackV1   = "exercise_pack_v1"
)

const contractExtension = ".json"

// Registry holds named schemas. It is built once at startup and handed to the
// components that validate against it; there is no package-level cache.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]JSON
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]JSON)}
}

// BuiltinRegistry returns a registry preloaded with every stage output contract
// shipped with the module.
func BuiltinRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.LoadFS(contractsFS, "contracts"); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a schema under name after linting it. Registering the same
// name twice is an error.
func (r *Registry) Register(name string, s JSON) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}
	if err := Lint(name, s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[name]; exists {
		return fmt.Errorf("schema %s already registered", name)
	}
	r.schemas[name] = s
	return nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (JSON, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the registered schema names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadDir registers every *.json file in dir, named after the file without
// its extension.
func (r *Registry) LoadDir(dir string) error {
	return r.LoadFS(os.DirFS(dir), ".")
}

// LoadFS registers every *.json file in dir within fsys.
func (r *Registry) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read schema dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), contractExtension) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), contractExtension)
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read schema %s: %w", name, err)
		}
		var s JSON
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parse schema %s: %w", name, err)
		}
		if err := r.Register(name, s); err != nil {
			return err
		}
	}
	return nil
}

// MarshalIndented renders the named schema as indented JSON, the form handed
// to the generator as its output contract.
func (r *Registry) MarshalIndented(name string) ([]byte, error) {
	s, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return json.MarshalIndent(s, "", "  ")
}
