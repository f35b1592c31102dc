package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vmemd/internal/autosave"
	"github.com/fyrsmithlabs/vmemd/internal/secrets"
)

var (
	initAutoSave string
	uninitYes    bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initAutoSave, "auto-save", "off", "initial auto-save mode (off, on, prompt)")

	rootCmd.AddCommand(uninitCmd)
	uninitCmd.Flags().BoolVarP(&uninitYes, "yes", "y", false, "skip the confirmation prompt")
}

// agentGuide is the .vmem.md scaffold dropped into initialized projects.
const agentGuide = `# vmem - Vector Memory

## AUTO-RETRIEVAL (Before work)
When the user asks about implementation, debugging, or "how did we do X":
1. Query: vmem query "relevant keywords"
2. Also try: vmem search "keywords" (searches project + global)
3. Use results as context for your response

## AUTO-SAVE (After work)
After completing implementation tasks:
1. Check: vmem status
2. If auto-save is ON, run: vmem save "summary of work"
3. If auto-save is OFF, only save when the user asks (use --force)
4. If auto-save is PROMPT, ask the user first

## What to Save
Implementation decisions, bug fixes, API patterns, architecture choices,
workflows, configurations, troubleshooting steps, lessons learned.

Skip pure questions without answers, incomplete brainstorming, and long
documentation dumps. Keep saves to 2-4 sentences.

Save format: WHAT was done + WHY it matters + KEY function names.

## Commands
| Command | Purpose |
|---------|---------|
| vmem query "term" | Search project collection |
| vmem search "term" | Search project + global |
| vmem save "text" | Save (respects toggle) |
| vmem save "text" --force | Force save (always works) |
| vmem status | Check auto-save toggle |
| vmem toggle on | Enable auto-save |
| vmem ping | Check server connectivity |
| vmem history | Show recent saves |
| vmem prune --duplicates | Remove duplicate entries |
| vmem prune --older-than 30 | Remove entries older than 30 days |
| vmem prune compact --all | Remove all snapshots |
| vmem compact "text" | Save project snapshot |
| vmem retrieve | Get newest snapshot |
| vmem retrieve --all | List all snapshots |
| vmem delete 2 | Delete snapshot at rank 2 |
`

// vmemReference is appended to agent instruction files so agents find
// the guide.
const vmemReference = "\n## Vector Memory\nFor vmem commands and auto-save/retrieval behavior, read: `.vmem.md`\n"

// agentDocNames are the agent instruction files init looks for, in
// preference order.
var agentDocNames = []string{"CLAUDE.md", "GEMINI.md", "QWEN.md", "AGENTS.md"}

// initCmd scaffolds vmem files into the current project
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize vmem in the current project",
	Long: `Create the .vmem.md agent guide and .vmem.yml auto-save config in the
current directory, ignore them in .gitignore, and reference the guide
from existing agent instruction files (CLAUDE.md, GEMINI.md, QWEN.md,
AGENTS.md). When none exist, AGENTS.md is created.

Examples:
  # Scaffold with auto-save off
  vmem init

  # Scaffold with auto-save enabled
  vmem init --auto-save on`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

// runInit handles the init command
func runInit(cmd *cobra.Command, args []string) error {
	mode := autosave.Mode(strings.ToLower(initAutoSave))
	if !mode.Valid() {
		return fmt.Errorf("invalid auto-save mode %q (must be off, on, or prompt)", initAutoSave)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := initProject(cwd, mode, cmd.Flags().Changed("auto-save")); err != nil {
		return err
	}

	fmt.Println("\n✓ vmem initialized!")
	if mode == autosave.ModeOff {
		fmt.Println("  Run 'vmem toggle on' to enable auto-save.")
	}
	return nil
}

// initProject scaffolds dir. setMode overwrites an existing .vmem.yml
// with the requested mode; otherwise an existing file is left alone.
func initProject(dir string, mode autosave.Mode, setMode bool) error {
	guidePath := filepath.Join(dir, ".vmem.md")
	if _, err := os.Stat(guidePath); err == nil {
		fmt.Println("ℹ️  .vmem.md already exists")
	} else {
		if err := os.WriteFile(guidePath, []byte(agentGuide), 0644); err != nil {
			return fmt.Errorf("writing .vmem.md: %w", err)
		}
		fmt.Println("✓ Created .vmem.md")
	}

	configPath := filepath.Join(dir, ".vmem.yml")
	_, err := os.Stat(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.WriteFile(configPath, []byte(fmt.Sprintf("auto_save: %s\n", mode)), 0600); err != nil {
			return fmt.Errorf("writing .vmem.yml: %w", err)
		}
		fmt.Printf("✓ Created .vmem.yml (auto_save: %s)\n", mode)
	case err == nil && setMode:
		if err := os.WriteFile(configPath, []byte(fmt.Sprintf("auto_save: %s\n", mode)), 0600); err != nil {
			return fmt.Errorf("writing .vmem.yml: %w", err)
		}
		fmt.Printf("✓ Updated .vmem.yml (auto_save: %s)\n", mode)
	case err != nil:
		return fmt.Errorf("checking .vmem.yml: %w", err)
	}

	updateGitignore(dir)
	return updateAgentDocs(dir)
}

// updateGitignore keeps the local vmem files out of version control.
// Failures warn instead of aborting the rest of the scaffold.
func updateGitignore(dir string) {
	entries := []string{".vmem.md", ".vmem.yml", secrets.ProjectAllowlistFile}

	path := filepath.Join(dir, ".gitignore")
	existing := make(map[string]bool)
	content, err := os.ReadFile(path)
	fileExists := err == nil
	if fileExists {
		for _, line := range strings.Split(string(content), "\n") {
			existing[strings.TrimSpace(line)] = true
		}
	}

	var missing []string
	for _, e := range entries {
		if !existing[e] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return
	}

	block := "# vmem\n" + strings.Join(missing, "\n") + "\n"
	if fileExists {
		block = "\n" + block
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("⚠ Could not update .gitignore: %v\n", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(block); err != nil {
		fmt.Printf("⚠ Could not update .gitignore: %v\n", err)
		return
	}
	fmt.Println("✓ Updated .gitignore")
}

// updateAgentDocs points existing agent instruction files at the guide,
// creating AGENTS.md when the project has none.
func updateAgentDocs(dir string) error {
	var found []string
	for _, name := range agentDocNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			found = append(found, name)
		}
	}

	if len(found) == 0 {
		path := filepath.Join(dir, "AGENTS.md")
		if err := os.WriteFile(path, []byte("# Agent Instructions\n"+vmemReference), 0644); err != nil {
			return fmt.Errorf("writing AGENTS.md: %w", err)
		}
		fmt.Println("✓ Created AGENTS.md")
		return nil
	}

	for _, name := range found {
		path := filepath.Join(dir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if strings.Contains(string(content), ".vmem.md") {
			fmt.Printf("ℹ️  %s already has vmem reference\n", name)
			continue
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		if _, err := f.WriteString(vmemReference); err != nil {
			f.Close()
			return fmt.Errorf("updating %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("updating %s: %w", name, err)
		}
		fmt.Printf("✓ Updated %s\n", name)
	}
	return nil
}

// uninitCmd removes the project's memory
var uninitCmd = &cobra.Command{
	Use:   "uninit",
	Short: "Delete the project's memory",
	Long: `Drop the project's remote collection and remove the local .vmem.yml
and .vmem.md files. Dropping a collection that does not exist counts
as success.

Examples:
  vmem uninit
  vmem uninit --yes`,
	Args: cobra.NoArgs,
	RunE: runUninit,
}

// runUninit handles the uninit command
func runUninit(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	if !uninitYes && !confirm(fmt.Sprintf("Delete all memories for project %q?", env.project.Slug)) {
		fmt.Println("Aborted.")
		return nil
	}

	if _, err := env.api.DeleteProject(cmd.Context(), env.project.Slug); err != nil {
		return fmt.Errorf("deleting project collection: %w", err)
	}
	fmt.Printf("✓ Deleted remote collection for project %q\n", env.project.Slug)

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	for _, name := range []string{".vmem.yml", ".vmem.md"} {
		err := os.Remove(filepath.Join(cwd, name))
		switch {
		case err == nil:
			fmt.Printf("✓ Removed %s\n", name)
		case !errors.Is(err, fs.ErrNotExist):
			fmt.Fprintf(os.Stderr, "⚠ Could not remove %s: %v\n", name, err)
		}
	}
	return nil
}
