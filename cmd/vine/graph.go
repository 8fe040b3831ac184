package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/vine/internal/core"
	"github.com/aretw0/vine/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the computed dependency graph as a Mermaid flowchart",
	Long: `Builds every store of the definition file, evaluates each computed once
and prints the props every computed read. Pass --dirty to highlight computeds
that are stale after the load.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := loadApp(ctx, cmd)
		if err != nil {
			fmt.Printf("Definition is invalid: %v\n", err)
			os.Exit(1)
		}
		defer a.Close(ctx)

		dirty, _ := cmd.Flags().GetBool("dirty")
		fmt.Print(renderGraph(a, dirty))
	},
}

func renderGraph(a *app, dirty bool) string {
	var overlay *graph.Overlay
	if dirty {
		overlay = graph.OverlayOf(a.stores...)
	}
	for _, s := range a.stores {
		for _, c := range s.Computeds() {
			s.View().Path(trimStore(s, c.Name))
		}
	}
	computeds, deps := graph.Dependencies(a.stores...)
	return graph.GenerateMermaid(computeds, deps, overlay)
}

func trimStore(s *core.Store, name string) string {
	return name[len(s.Name())+1:]
}

func init() {
	graphCmd.Flags().Bool("dirty", false, "Highlight computeds that were not evaluated yet")
	rootCmd.AddCommand(graphCmd)
}
