package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/vine/internal/core"
)

// Overlay contains dynamic state data to visualize on the graph.
type Overlay struct {
	// Dirty lists computeds whose next read re-runs the getter.
	Dirty []string
}

// OverlayOf marks every dirty computed of stores.
func OverlayOf(stores ...*core.Store) *Overlay {
	o := &Overlay{}
	for _, s := range stores {
		for _, c := range s.Computeds() {
			if c.Dirty {
				o.Dirty = append(o.Dirty, c.Name)
			}
		}
	}
	return o
}

// Dependencies collects the computed graph of stores.
func Dependencies(stores ...*core.Store) ([]core.ComputedProp, []core.Dependency) {
	var computeds []core.ComputedProp
	var deps []core.Dependency
	for _, s := range stores {
		computeds = append(computeds, s.Computeds()...)
		deps = append(deps, s.Dependencies()...)
	}
	return computeds, deps
}

// GenerateMermaid produces a Mermaid flowchart of the computed graph, with
// edges pointing from a dependency to the computed that reads it.
// It applies semantic styling:
// - Computed: {{Hexagon}}
// - Keys enumeration: [/Parallelogram/]
// - Default: [Rectangle]
// Edges crossing stores are dotted, deep (subtree) edges are thick.
func GenerateMermaid(computeds []core.ComputedProp, deps []core.Dependency, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	isComputed := make(map[string]bool, len(computeds))
	for _, c := range computeds {
		isComputed[c.Name] = true
	}

	seen := make(map[string]bool)
	declare := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		opener, closer := "[", "]"
		switch {
		case isComputed[name]:
			opener, closer = "{{", "}}"
		case strings.HasSuffix(name, ".keys()"):
			opener, closer = "[/", "/]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(name), opener, name, closer))
	}

	names := make([]string, 0, len(computeds))
	for _, c := range computeds {
		names = append(names, c.Name)
	}
	for _, d := range deps {
		names = append(names, d.Dep)
	}
	sort.Strings(names)
	for _, name := range names {
		declare(name)
	}

	for _, d := range deps {
		arrow := "-->"
		switch {
		case d.Deep:
			arrow = "==>"
		case storeOf(d.Dep) != storeOf(d.Computed):
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(d.Dep), arrow, sanitizeMermaidID(d.Computed)))
	}

	if overlay != nil && len(overlay.Dirty) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast regardless of theme
		sb.WriteString("    classDef dirty fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
		dirty := make(map[string]bool)
		for _, name := range overlay.Dirty {
			id := sanitizeMermaidID(name)
			if !dirty[id] && id != "" {
				dirty[id] = true
				sb.WriteString(fmt.Sprintf("    class %s dirty;\n", id))
			}
		}
	}

	return sb.String()
}

func storeOf(name string) string {
	store, _, _ := strings.Cut(name, ".")
	return store
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "@", "_", "(", "", ")", "")
	return r.Replace(id)
}
