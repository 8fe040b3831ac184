package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "vine",
	Short: "vine is a fine-grained reactive state container",
	Long:  `vine loads store definitions from YAML or JSON and drives them from scripts, HTTP or the storage inspector.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	registerFlags(rootCmd.PersistentFlags())
}

func registerFlags(flags *pflag.FlagSet) {
	flags.StringP("file", "f", "vine.yaml", "Store definition file (.yaml, .yml or .json)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("backend", "file", "Persistence backend: file, sqlite, redis or memory")
	flags.String("data", ".vine", "Directory (file backend) or database path (sqlite backend)")
	flags.String("redis-addr", "localhost:6379", "Redis address (redis backend)")
	flags.String("namespace", "", "Prefix applied to every storage key")
	flags.Bool("lock", false, "Take a distributed lock around writes (redis backend)")
}
