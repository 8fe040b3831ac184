// Package definition loads declarative store definitions from YAML or JSON.
//
// Computed fields and actions are expressions (see package formula), so a
// whole store can be described without Go code:
//
//	stores:
//	  - name: Counter
//	    state:
//	      count: 0
//	    computed:
//	      double: count * 2
//	    actions:
//	      inc:
//	        - set: count
//	          value: count + 1
package definition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/pkg/formula"
)

// File is the top-level document.
type File struct {
	Stores []StoreSpec `yaml:"stores" json:"stores"`
}

// StoreSpec declares one store.
type StoreSpec struct {
	Name     string            `yaml:"name" json:"name"`
	State    map[string]any    `yaml:"state" json:"state"`
	Computed map[string]string `yaml:"computed" json:"computed"`
	// Actions maps a name to one step or a list of steps.
	Actions map[string]any `yaml:"actions" json:"actions"`
	Persist *PersistSpec   `yaml:"persist" json:"persist"`
}

// PersistSpec configures the persistence collaborator for a store.
type PersistSpec struct {
	Key           string   `yaml:"key" json:"key"`
	Version       int      `yaml:"version" json:"version"`
	Allow         []string `yaml:"allow" json:"allow"`
	Deny          []string `yaml:"deny" json:"deny"`
	FlushInterval string   `yaml:"flush_interval" json:"flush_interval"`
}

// Interval parses FlushInterval. Empty means the collaborator's default.
func (p *PersistSpec) Interval() (time.Duration, error) {
	if p == nil || p.FlushInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.FlushInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid flush_interval %q: %w", p.FlushInterval, err)
	}
	return d, nil
}

// Load reads a definition file. The format follows the extension: ".json"
// is JSON, anything else YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	format := "yaml"
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		format = "json"
	}
	return Parse(data, format)
}

// Parse decodes a definition document in the given format ("yaml" or "json").
func Parse(data []byte, format string) (*File, error) {
	var f File
	switch format {
	case "json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse definition json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse definition yaml: %w", err)
		}
	}
	for i, s := range f.Stores {
		if s.Name == "" {
			return nil, fmt.Errorf("store %d: missing name", i)
		}
	}
	return &f, nil
}

// Definition compiles s into an engine definition.
func (s StoreSpec) Definition(opts ...formula.Option) (core.Definition, error) {
	def := core.Definition{
		Name:     s.Name,
		State:    s.State,
		Computed: make(map[string]core.ComputedFunc, len(s.Computed)),
		Actions:  make(map[string]core.ActionFunc, len(s.Actions)),
	}
	for _, key := range sortedKeys(s.Computed) {
		f, err := formula.Compile(s.Computed[key], opts...)
		if err != nil {
			return def, fmt.Errorf("store %s: computed %s: %w", s.Name, key, err)
		}
		def.Computed[key] = f.Computed()
	}
	for _, name := range sortedKeys(s.Actions) {
		steps, err := decodeSteps(s.Actions[name])
		if err != nil {
			return def, fmt.Errorf("store %s: action %s: %w", s.Name, name, err)
		}
		action, err := formula.Action(steps, opts...)
		if err != nil {
			return def, fmt.Errorf("store %s: action %s: %w", s.Name, name, err)
		}
		def.Actions[name] = action
	}
	return def, nil
}

func decodeSteps(raw any) ([]formula.Step, error) {
	switch v := raw.(type) {
	case map[string]any:
		var step formula.Step
		if err := mapstructure.Decode(v, &step); err != nil {
			return nil, fmt.Errorf("failed to decode step: %w", err)
		}
		return []formula.Step{step}, nil
	case []any:
		var steps []formula.Step
		if err := mapstructure.Decode(v, &steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps: %w", err)
		}
		return steps, nil
	default:
		return nil, fmt.Errorf("invalid action definition type: %T", v)
	}
}

// Build creates every store of f on eng, in declaration order.
func (f *File) Build(eng *core.Engine, opts ...formula.Option) ([]*core.Store, error) {
	stores := make([]*core.Store, 0, len(f.Stores))
	for _, spec := range f.Stores {
		def, err := spec.Definition(opts...)
		if err != nil {
			return nil, err
		}
		s, err := eng.CreateStore(def)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
