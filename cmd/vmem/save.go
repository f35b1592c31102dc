package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vmemd/internal/autosave"
)

var (
	saveGlobal     bool
	saveForce      bool
	saveTags       string
	saveAgent      string
	saveImportance int
)

func init() {
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().BoolVar(&saveGlobal, "global", false, "save to the global collection")
	saveCmd.Flags().BoolVarP(&saveForce, "force", "f", false, "save regardless of the auto-save mode")
	saveCmd.Flags().StringVar(&saveTags, "tags", "", "comma-separated tags")
	saveCmd.Flags().IntVar(&saveImportance, "importance", 0, "importance rank, higher ranks first")
	saveCmd.Flags().StringVar(&saveAgent, "agent", "cli", "agent name recorded in metadata")
}

// saveCmd saves a note to vector storage
var saveCmd = &cobra.Command{
	Use:   "save [text]",
	Short: "Save a note to vector storage",
	Long: `Save a short note to the project's collection (or the global one).

Without --force the save is treated as automatic and gated by the
auto-save mode: off refuses, prompt asks for confirmation, on proceeds.
Secrets are redacted before transmission unless --no-redact is set.

Examples:
  # Save a note to the current project
  vmem save "the deploy script lives in scripts/release.sh" --force

  # Save from stdin with tags
  git log -1 | vmem save - --force --tags release,notes

  # Save to the global collection
  vmem save "prefer table-driven tests" --global --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSave,
}

// runSave handles the save command
func runSave(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	if !saveForce {
		mode := env.saves.Load().Effective()
		// Piped text cannot answer a prompt; only arg-form saves
		// confirm interactively.
		var ask func() bool
		if len(args) > 0 && args[0] != "-" {
			ask = func() bool { return confirm("Save to vector storage?") }
		}
		if !autosave.CanSave(mode, ask) {
			fmt.Fprintf(os.Stderr, "Auto-save is %s. Use --force to save manually.\n", strings.ToUpper(string(mode)))
			return nil
		}
	}

	text, err := readText(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}

	text, redacted, err := env.redactSecrets(text)
	if err != nil {
		return err
	}

	source := "auto"
	if saveForce {
		source = "manual"
	}
	metadata := map[string]any{
		"type":   "note",
		"agent":  saveAgent,
		"source": source,
	}
	if saveTags != "" {
		metadata["tags"] = splitTags(saveTags)
	}
	if saveImportance > 0 {
		metadata["importance"] = saveImportance
	}

	resp, err := env.api.Write(cmd.Context(), env.scope(saveGlobal), text, metadata)
	if err != nil {
		return fmt.Errorf("saving: %w", err)
	}

	fmt.Printf("✓ Saved to %s\n", resp.Collection)
	if resp.ID != "" {
		fmt.Printf("  ID: %s\n", resp.ID)
	}
	if redacted > 0 {
		fmt.Fprintf(os.Stderr, "Redacted %d secret(s) before saving\n", redacted)
	}
	return nil
}

// splitTags parses a comma-separated tag list, dropping empty entries.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
