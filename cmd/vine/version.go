package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/vine"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of vine",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vine version %s\n", strings.TrimSpace(vine.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
