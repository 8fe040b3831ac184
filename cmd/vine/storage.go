package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/vine/pkg/persist"
	"github.com/spf13/cobra"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage persisted stores",
	Long:  `List, inspect, and remove items written by the persistence layer in the selected backend.`,
}

var storageLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all persisted items",
	Run: func(cmd *cobra.Command, args []string) {
		b := getBackend(cmd)
		defer b.Close()

		keys, err := b.storage.Keys(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing items: %v\n", err)
			os.Exit(1)
		}

		if len(keys) == 0 {
			fmt.Println("No persisted items found.")
			return
		}

		fmt.Println("Persisted Items:")
		for _, k := range keys {
			fmt.Println("- " + k)
		}
	},
}

var storageGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a persisted item",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		b := getBackend(cmd)
		defer b.Close()

		raw, err := b.storage.GetItem(cmd.Context(), key)
		if err != nil {
			fmt.Printf("Error loading item '%s': %v\n", key, err)
			os.Exit(1)
		}

		env, err := persist.Decode(raw)
		if err != nil {
			// Not an envelope: show it as stored.
			fmt.Println(raw)
			return
		}

		// Pretty print JSON
		data, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling item: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(data))
	},
}

var storageRmCmd = &cobra.Command{
	Use:   "rm <key>...",
	Short: "Remove one or more persisted items",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b := getBackend(cmd)
		defer b.Close()
		guard := persist.NewGuard(b.storage, persist.WithLocker(b.locker))
		hasError := false

		for _, key := range args {
			if err := guard.Delete(cmd.Context(), key); err != nil {
				fmt.Printf("Error removing '%s': %v\n", key, err)
				hasError = true
			} else {
				fmt.Printf("Removed item '%s'\n", key)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(storageLsCmd)
	storageCmd.AddCommand(storageGetCmd)
	storageCmd.AddCommand(storageRmCmd)
}

func getBackend(cmd *cobra.Command) *backend {
	b, err := openBackend(cmd)
	if err != nil {
		fmt.Printf("Error opening storage: %v\n", err)
		os.Exit(1)
	}
	return b
}
