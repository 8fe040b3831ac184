package formula

import (
	"fmt"
	"strings"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/pkg/domain"
)

// Step is one write of a declarative action. Exactly one of Set, Delete,
// Append or Pop names the target path. Value is an expression evaluated
// against the latest state, with the call arguments bound to "args".
type Step struct {
	Set    string `mapstructure:"set" json:"set,omitempty"`
	Delete string `mapstructure:"delete" json:"delete,omitempty"`
	Append string `mapstructure:"append" json:"append,omitempty"`
	Pop    string `mapstructure:"pop" json:"pop,omitempty"`
	Value  string `mapstructure:"value" json:"value,omitempty"`
}

type compiledStep struct {
	op     string
	target string
	value  *Formula
}

// Action compiles steps into an action. Steps run in order against the
// inner view, so each one sees the writes of the previous ones. The result
// is the value of the last step.
func Action(steps []Step, opts ...Option) (core.ActionFunc, error) {
	c := newConfig(opts)
	compiled := make([]compiledStep, 0, len(steps))
	for i, s := range steps {
		cs, err := compileStep(s, c)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		compiled = append(compiled, cs)
	}

	return func(self *core.View, args ...any) (any, error) {
		var result any
		for i, s := range compiled {
			out, err := s.run(self, args)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			result = out
		}
		return result, nil
	}, nil
}

func compileStep(s Step, c *config) (compiledStep, error) {
	var cs compiledStep
	targets := 0
	for op, target := range map[string]string{"set": s.Set, "delete": s.Delete, "append": s.Append, "pop": s.Pop} {
		if target != "" {
			cs.op, cs.target = op, target
			targets++
		}
	}
	if targets != 1 {
		return cs, fmt.Errorf("exactly one of set, delete, append or pop is required")
	}
	needsValue := cs.op == "set" || cs.op == "append"
	if needsValue != (s.Value != "") {
		return cs, fmt.Errorf("%s %q: value is required only for set and append", cs.op, cs.target)
	}
	if needsValue {
		f, err := compile(s.Value, c)
		if err != nil {
			return cs, err
		}
		cs.value = f
	}
	return cs, nil
}

func (s compiledStep) run(self *core.View, args []any) (any, error) {
	var value any
	if s.value != nil {
		v, err := s.value.Eval(self, map[string]any{"args": args})
		if err != nil {
			return nil, err
		}
		value = v
	}

	parent, key, err := resolveTarget(self, s.target)
	if err != nil {
		return nil, err
	}
	switch s.op {
	case "set":
		return value, parent.Set(key, value)
	case "delete":
		return nil, parent.Delete(key)
	}

	list, ok := parent.Get(key).(*core.View)
	if !ok || !list.IsArray() {
		return nil, domain.Violation(self.StoreName(), s.op, s.target, domain.ErrNotContainer)
	}
	if s.op == "append" {
		return value, list.Append(value)
	}
	return list.Pop()
}

func resolveTarget(self *core.View, path string) (*core.View, string, error) {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return self, path, nil
	}
	parent, ok := self.Path(path[:i]).(*core.View)
	if !ok {
		return nil, "", domain.Violation(self.StoreName(), "resolve", path, domain.ErrNotContainer)
	}
	return parent, path[i+1:], nil
}
