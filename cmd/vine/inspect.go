package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/vine/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// storeReport describes a store as loaded, including computed values.
type storeReport struct {
	Name     string         `json:"name"`
	State    any            `json:"state"`
	Computed map[string]any `json:"computed,omitempty"`
	Actions  []string       `json:"actions"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Check the definition file and print every store",
	Long: `Builds every store of the definition file, restoring persisted state
when configured, and prints the state, computed values and actions as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := loadApp(ctx, cmd)
		if err != nil {
			fmt.Printf("Definition is invalid: %v\n", err)
			os.Exit(1)
		}
		defer a.Close(ctx)

		format, _ := cmd.Flags().GetString("format")
		out, err := renderReports(inspect(a), format)
		if err != nil {
			fmt.Printf("Error rendering stores: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(out)
	},
}

func inspect(a *app) []storeReport {
	reports := make([]storeReport, 0, len(a.stores))
	for i, store := range a.stores {
		report := storeReport{
			Name:    store.Name(),
			State:   store.View().Snapshot(),
			Actions: store.Actions(),
		}
		for key := range a.def.Stores[i].Computed {
			if report.Computed == nil {
				report.Computed = make(map[string]any)
			}
			report.Computed[key] = store.View().Path(key)
		}
		reports = append(reports, report)
	}
	return reports
}

func renderReports(reports []storeReport, format string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(reports, "", "  ")
		return string(data), err
	case "markdown":
		md, err := reportsMarkdown(reports)
		if err != nil {
			return "", err
		}
		render, err := tui.NewRenderer(100)
		if err != nil {
			return "", err
		}
		return render(md)
	default:
		return "", fmt.Errorf("unknown format %q (json or markdown)", format)
	}
}

func reportsMarkdown(reports []storeReport) (string, error) {
	var sb strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&sb, "# %s\n\n", r.Name)
		state, err := json.MarshalIndent(r.State, "", "  ")
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "```json\n%s\n```\n\n", state)
		if len(r.Computed) > 0 {
			sb.WriteString("| computed | value |\n|---|---|\n")
			keys := make([]string, 0, len(r.Computed))
			for k := range r.Computed {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				v, err := json.Marshal(r.Computed[k])
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&sb, "| %s | `%s` |\n", k, v)
			}
			sb.WriteString("\n")
		}
		if len(r.Actions) > 0 {
			fmt.Fprintf(&sb, "Actions: %s\n\n", strings.Join(r.Actions, ", "))
		}
	}
	return sb.String(), nil
}

func init() {
	inspectCmd.Flags().String("format", "json", "Output format: json or markdown")
	rootCmd.AddCommand(inspectCmd)
}
