package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

var (
	compactGlobal bool

	retrieveGlobal bool
	retrieveAll    bool
	retrieveLatest bool

	deleteGlobal bool
	deleteDryRun bool
)

func init() {
	rootCmd.AddCommand(compactCmd)
	compactCmd.Flags().BoolVar(&compactGlobal, "global", false, "save to the global collection")

	rootCmd.AddCommand(retrieveCmd)
	retrieveCmd.Flags().BoolVar(&retrieveGlobal, "global", false, "read the global collection")
	retrieveCmd.Flags().BoolVar(&retrieveAll, "all", false, "list every stored compact")
	retrieveCmd.Flags().BoolVar(&retrieveLatest, "latest", false, "retrieve the newest snapshot")

	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteGlobal, "global", false, "delete from the global collection")
	deleteCmd.Flags().BoolVar(&deleteDryRun, "dry-run", false, "show what would be deleted without deleting")
}

// compactCmd saves a session snapshot with rotation
var compactCmd = &cobra.Command{
	Use:   "compact [text]",
	Short: "Save a session snapshot",
	Long: `Save a long-form snapshot to the project's collection (or the global
one). Only the most recent snapshots are kept; each save rotates out
the oldest entries beyond the retention limit.

Examples:
  # Snapshot the session state
  vmem compact "refactored auth middleware, tests green, next: rate limits"

  # Pipe a summary in
  cat summary.md | vmem compact -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompact,
}

// runCompact handles the compact command
func runCompact(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	text, err := readText(args)
	if err != nil {
		return err
	}

	text, redacted, err := env.redactSecrets(text)
	if err != nil {
		return err
	}

	scope := env.scope(compactGlobal)
	metadata := map[string]any{
		"agent":  "cli",
		"source": "manual",
	}

	result, err := env.store.AppendCompact(cmd.Context(), scope, text, metadata)
	if err != nil {
		var over *retention.OverRetentionError
		if !errors.As(err, &over) {
			return fmt.Errorf("saving compact: %w", err)
		}
		// The compact is stored; the rotation just did not finish.
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", over)
	}

	if len(result.Evicted) > 0 {
		fmt.Printf("ℹ️  Deleted oldest compact to make room (max %d)\n", result.Limit)
	}
	fmt.Printf("✓ Compact saved to %s\n", client.CollectionName(scope))
	if result.Entry.ID != "" {
		fmt.Printf("  ID: %s\n", result.Entry.ID)
	}
	if result.Retained > 0 {
		fmt.Printf("  Total compacts: %d/%d\n", result.Retained, result.Limit)
	}
	if redacted > 0 {
		fmt.Fprintf(os.Stderr, "Redacted %d secret(s) before saving\n", redacted)
	}
	return nil
}

// retrieveCmd reads back stored compacts
var retrieveCmd = &cobra.Command{
	Use:   "retrieve [index]",
	Short: "Retrieve a session snapshot",
	Long: `Print a stored snapshot. Index 1 is the newest; omitting the index
retrieves it. Use --all to list every snapshot instead.

Examples:
  # Show the latest snapshot
  vmem retrieve

  # Show the third newest
  vmem retrieve 3

  # List all snapshots
  vmem retrieve --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRetrieve,
}

// runRetrieve handles the retrieve command
func runRetrieve(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	scope := env.scope(retrieveGlobal)

	if retrieveAll {
		entries, err := env.store.ListCompacts(cmd.Context(), scope)
		if err != nil {
			return fmt.Errorf("listing compacts: %w", err)
		}
		if len(entries) == 0 {
			fmt.Printf("No compacts found in %s collection\n", scope)
			return nil
		}
		fmt.Println(separator)
		fmt.Printf("📦 Compacts (%s): %d/%d\n", scope, len(entries), env.store.CompactLimit())
		fmt.Println(separator)
		for i, e := range entries {
			fmt.Printf("[%d] %s | %s\n", i+1, entryDate(e), retention.PreviewText(e.Text, 60))
		}
		return nil
	}

	index := 1
	if !retrieveLatest {
		if index, err = parseIndex(args, 1); err != nil {
			return err
		}
	}

	entry, err := env.store.RetrieveCompact(cmd.Context(), scope, index)
	if errors.Is(err, retention.ErrNoEntries) {
		fmt.Printf("No compacts found in %s collection\n", scope)
		return nil
	}
	if err != nil {
		return fmt.Errorf("retrieving compact: %w", err)
	}

	created := "Unknown"
	if !entry.CreatedAt.IsZero() {
		created = entry.CreatedAt.Format("2006-01-02 15:04:05")
	}
	fmt.Println(separator)
	fmt.Printf("📦 Compact [%d] - %s\n", index, created)
	fmt.Println(separator)
	fmt.Println(entry.Text)
	return nil
}

// deleteCmd removes one compact by recency rank
var deleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete a session snapshot",
	Long: `Delete the snapshot at the given recency rank, 1 being the newest.
Ranks are resolved at deletion time, so repeating the same rank deletes
whatever occupies it next.

Examples:
  # Preview, then delete the second newest snapshot
  vmem delete 2 --dry-run
  vmem delete 2`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

// runDelete handles the delete command
func runDelete(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	scope := env.scope(deleteGlobal)

	index, err := parseIndex(args, 0)
	if err != nil {
		return err
	}

	entry, err := env.store.RetrieveCompact(cmd.Context(), scope, index)
	if errors.Is(err, retention.ErrNoEntries) {
		fmt.Println("No compacts found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolving compact: %w", err)
	}

	fmt.Println(separator)
	fmt.Println("📦 Compact to delete:")
	fmt.Println(separator)
	fmt.Printf("[%d] %s | %s\n", index, entryDate(entry), retention.PreviewText(entry.Text, 60))
	fmt.Printf("ID: %s\n", entry.ID)

	if deleteDryRun {
		fmt.Println("\nℹ️  Dry run - no changes made.")
		return nil
	}

	if _, err := env.store.DeleteCompact(cmd.Context(), scope, index); err != nil {
		return fmt.Errorf("deleting compact: %w", err)
	}
	fmt.Printf("\n✓ Deleted compact [%d]\n", index)
	return nil
}

// parseIndex reads the positional rank argument. def is returned when
// the argument is absent; zero def makes it required.
func parseIndex(args []string, def int) (int, error) {
	if len(args) == 0 {
		if def > 0 {
			return def, nil
		}
		return 0, fmt.Errorf("index is required")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil || index < 1 {
		return 0, fmt.Errorf("invalid index %q: must be a positive number", args[0])
	}
	return index, nil
}
