package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

var (
	pruneGlobal     bool
	pruneDuplicates bool
	pruneOlderThan  int
	pruneAll        bool
	pruneDryRun     bool
	pruneVerbose    bool
)

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().BoolVar(&pruneGlobal, "global", false, "prune the global collection")
	pruneCmd.Flags().BoolVar(&pruneDuplicates, "duplicates", false, "remove older copies of repeated text")
	pruneCmd.Flags().IntVar(&pruneOlderThan, "older-than", 0, "remove entries older than N days")
	pruneCmd.Flags().BoolVar(&pruneAll, "all", false, "remove every entry")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be deleted without deleting")
	pruneCmd.Flags().BoolVarP(&pruneVerbose, "verbose", "v", false, "show full entries instead of previews")
}

// pruneCmd sweeps notes or compacts by rule
var pruneCmd = &cobra.Command{
	Use:   "prune [compact]",
	Short: "Remove duplicate or old entries",
	Long: `Sweep the project's collection (or the global one) and delete entries
matching the selected rules. Without an argument the sweep covers
notes; "prune compact" sweeps the stored snapshots instead.

The duplicate rule keeps the newest copy of each repeated text. Rules
combine; each matched entry is deleted once.

Examples:
  # Preview duplicate removal
  vmem prune --duplicates --dry-run

  # Delete notes older than 30 days
  vmem prune --older-than 30

  # Wipe all snapshots
  vmem prune compact --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

// runPrune handles the prune command
func runPrune(cmd *cobra.Command, args []string) error {
	kind := retention.KindNote
	if len(args) > 0 {
		if args[0] != "compact" {
			return fmt.Errorf("unknown prune target %q, did you mean \"compact\"?", args[0])
		}
		kind = retention.KindCompact
	}

	opts := retention.PruneOptions{
		Duplicates:    pruneDuplicates,
		OlderThanDays: pruneOlderThan,
		All:           pruneAll,
		DryRun:        pruneDryRun,
	}
	if !pruneDuplicates && pruneOlderThan <= 0 && !pruneAll {
		if kind == retention.KindCompact {
			fmt.Println("Specify --all or --older-than to prune compacts")
		} else {
			fmt.Println("Specify --duplicates, --older-than or --all to prune")
		}
		return nil
	}

	env, err := newEnv()
	if err != nil {
		return err
	}
	scope := env.scope(pruneGlobal)
	collection := client.CollectionName(scope)

	result, err := env.store.Prune(cmd.Context(), scope, kind, opts)
	var partial *retention.PartialFailureError
	if err != nil && !errors.As(err, &partial) {
		return fmt.Errorf("pruning: %w", err)
	}

	if result.Examined == 0 {
		if kind == retention.KindCompact {
			fmt.Println("No compacts found")
		} else {
			fmt.Printf("No documents found in %s\n", collection)
		}
		return nil
	}
	if len(result.Candidates) == 0 {
		if kind == retention.KindCompact {
			fmt.Println("No compacts match the criteria")
		} else {
			fmt.Printf("✓ Nothing to prune in %s\n", collection)
		}
		return nil
	}

	printPrunePlan(result, kind, collection)

	if result.DryRun {
		fmt.Println("\nℹ️  Dry run - no changes made. Remove --dry-run to delete.")
		return nil
	}

	noun := "entries"
	if kind == retention.KindCompact {
		noun = "compacts"
	}
	fmt.Printf("\n✓ Deleted %d %s\n", len(result.Deleted), noun)

	if partial != nil {
		for _, f := range result.Failed {
			fmt.Fprintf(os.Stderr, "✗ Failed to delete %s: %v\n", f.ID, f.Err)
		}
		return partial
	}
	return nil
}

// printPrunePlan lists the marked entries before deletion.
func printPrunePlan(result *retention.PruneResult, kind retention.Kind, collection string) {
	fmt.Println(separator)
	if kind == retention.KindCompact {
		fmt.Printf("📦 Compacts to delete from %s:\n", collection)
	} else {
		dryRun := ""
		if result.DryRun {
			dryRun = "[DRY RUN] "
		}
		fmt.Printf("🗑️  %sPruning %s:\n", dryRun, collection)
	}
	fmt.Println(separator)

	preview := 40
	if kind == retention.KindCompact {
		preview = 50
	}
	for i, c := range result.Candidates {
		if pruneVerbose {
			fmt.Printf("\n[%d] ID: %s\n", i+1, c.Entry.ID)
			fmt.Printf("    Created: %s\n", entryDate(c.Entry))
			fmt.Printf("    Reason: %s\n", c.Reason)
			fmt.Printf("    Text: %s\n", c.Entry.Text)
		} else {
			fmt.Printf("[%d] %s | %s\n", i+1, entryDate(c.Entry), retention.PreviewText(c.Entry.Text, preview))
		}
	}
	fmt.Printf("\nTotal to delete: %d\n", len(result.Candidates))
}
