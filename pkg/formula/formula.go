// Package formula declares computed fields and actions as expr-lang
// expressions, so store definitions can live in YAML or JSON files.
//
// A formula's statically referenced paths ("price", "user.name", "items[0]")
// are read through the owner view before evaluation, so the engine tracks
// exactly what the expression uses. A path whose value is a container is
// observed deeply.
package formula

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/internal/logging"
)

// Function is a helper callable from expressions.
type Function func(params ...any) (any, error)

// Option configures compilation.
type Option func(*config)

type config struct {
	functions map[string]Function
	logger    *slog.Logger
}

// WithFunction registers a helper under name.
func WithFunction(name string, fn Function) Option {
	return func(c *config) {
		if c.functions == nil {
			c.functions = make(map[string]Function)
		}
		c.functions[name] = fn
	}
}

// WithLogger sets the logger that reports evaluation errors of computeds.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Formula is a compiled expression plus the data paths it references.
type Formula struct {
	expression string
	program    *exprvm.Program
	paths      []string
	logger     *slog.Logger
}

// Compile parses and compiles expression.
func Compile(expression string, opts ...Option) (*Formula, error) {
	return compile(expression, newConfig(opts))
}

func compile(expression string, c *config) (*Formula, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("formula: expression must not be empty")
	}
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", expression, err)
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range sortedNames(c.functions) {
		fn := c.functions[name]
		options = append(options, exprlang.Function(name, func(params ...any) (any, error) {
			return fn(params...)
		}))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", expression, err)
	}
	return &Formula{
		expression: expression,
		program:    program,
		paths:      referencedPaths(tree.Node, c.functions),
		logger:     c.logger,
	}, nil
}

// String returns the source expression.
func (f *Formula) String() string {
	return f.expression
}

// Paths lists the dotted data paths the expression references statically.
func (f *Formula) Paths() []string {
	return append([]string(nil), f.paths...)
}

// Eval reads every referenced path through self, then evaluates the
// expression against a plain snapshot of self merged with extra.
func (f *Formula) Eval(self *core.View, extra map[string]any) (any, error) {
	for _, path := range f.paths {
		if v, ok := self.Path(path).(*core.View); ok {
			v.ObserveDeep()
		}
	}
	env := make(map[string]any)
	if snapshot, ok := self.Snapshot().(map[string]any); ok {
		for k, v := range snapshot {
			env[k] = v
		}
	}
	for k, v := range extra {
		env[k] = v
	}
	out, err := exprlang.Run(f.program, env)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", f.expression, err)
	}
	return out, nil
}

// Computed adapts f to a computed getter. Evaluation errors are logged and
// yield nil, since getters cannot fail.
func (f *Formula) Computed() core.ComputedFunc {
	return func(self *core.View) any {
		out, err := f.Eval(self, nil)
		if err != nil {
			f.logger.Warn("computed formula failed", "owner", self.Name(), "error", err)
			return nil
		}
		return out
	}
}

// referencedPaths collects the maximal member chains rooted at identifiers.
// ast.Walk visits children first, so a resolvable member drops the shorter
// chain recorded for its operand.
func referencedPaths(root ast.Node, functions map[string]Function) []string {
	c := &collector{chains: make(map[ast.Node]string), functions: functions}
	ast.Walk(&root, c)

	seen := make(map[string]bool, len(c.chains))
	paths := make([]string, 0, len(c.chains))
	for _, p := range c.chains {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

type collector struct {
	chains    map[ast.Node]string
	functions map[string]Function
}

func (c *collector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if _, fn := c.functions[n.Value]; fn || n.Value == "args" {
			return
		}
		c.chains[n] = n.Value
	case *ast.MemberNode:
		base, ok := c.chains[n.Node]
		if !ok || n.Method {
			return
		}
		var seg string
		switch p := n.Property.(type) {
		case *ast.StringNode:
			seg = p.Value
		case *ast.IntegerNode:
			seg = strconv.Itoa(p.Value)
		default:
			return
		}
		delete(c.chains, n.Node)
		c.chains[n] = base + "." + seg
	}
}

func sortedNames(m map[string]Function) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
