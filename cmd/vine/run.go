package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/vine"
	"github.com/aretw0/vine/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Drive the defined stores from a script",
	Long: `Loads the definition file and executes one command per line, from the
given script file or from stdin. Every line is one turn: its changes are
committed together and each store prints one notification line.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		headless, _ := cmd.Flags().GetBool("headless")
		if !cmd.Flags().Changed("headless") && !term.IsTerminal(int(os.Stdin.Fd())) {
			// Piped input is a script.
			headless = true
		}
		ctx := context.Background()

		a, err := loadApp(ctx, cmd)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		runner := vine.NewRunner()
		runner.Input = os.Stdin
		runner.Output = os.Stdout
		runner.Headless = headless
		if len(args) > 0 {
			f, err := os.Open(args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
			runner.Input = f
			runner.Headless = true
		}

		if !runner.Headless {
			tui.PrintBanner(os.Stdout)
		}
		runErr := runner.Run(a.engine)
		if err := a.Close(ctx); err != nil {
			fmt.Printf("Error flushing storage: %v\n", err)
			os.Exit(1)
		}
		if runErr != nil {
			fmt.Printf("Error: %v\n", runErr)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Run in headless mode (no prompts, stop at the first error)")
}
