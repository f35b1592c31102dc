package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vmemd/internal/autosave"
)

var (
	statusJSON   bool
	toggleGlobal bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")

	rootCmd.AddCommand(toggleCmd)
	toggleCmd.Flags().BoolVar(&toggleGlobal, "global", false, "set the global mode instead of the project's")

	rootCmd.AddCommand(pingCmd)
}

// statusOutput is the machine-readable status shape. ProjectMode is
// null when the project has no override.
type statusOutput struct {
	Mode        autosave.Mode  `json:"mode"`
	GlobalMode  autosave.Mode  `json:"global_mode"`
	ProjectMode *autosave.Mode `json:"project_mode"`
	Project     string         `json:"project"`
	APIURL      string         `json:"api_url"`
}

// statusCmd reports the auto-save modes and server reachability
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show auto-save mode and server connectivity",
	Long: `Show the effective auto-save mode, its global and project settings,
the detected project, and whether the vmemd server answers.

Examples:
  vmem status
  vmem status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	settings := env.saves.Load()
	global := settings.GlobalMode
	if global == "" {
		global = autosave.ModeOff
	}

	if statusJSON {
		out := statusOutput{
			Mode:       settings.Effective(),
			GlobalMode: global,
			Project:    env.project.Slug,
			APIURL:     env.cfg.BaseURL,
		}
		if settings.ProjectMode != "" {
			out.ProjectMode = &settings.ProjectMode
		}
		return printJSON(os.Stdout, out)
	}

	fmt.Println(separator)
	fmt.Println("📊 Vector Memory Status")
	fmt.Println(separator)
	fmt.Printf("Global Auto-save mode: %s\n", global)
	if settings.ProjectMode != "" {
		fmt.Printf("Project Auto-save mode: %s\n", settings.ProjectMode)
	} else {
		fmt.Println("Project Auto-save mode: not set")
	}
	fmt.Printf("Current project: %s\n", env.project.Slug)
	fmt.Printf("Vector API: %s\n", env.cfg.BaseURL)

	fmt.Print("Connectivity: ")
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()
	if err := env.api.Health(ctx); err != nil {
		fmt.Printf("❌ Unreachable (%v)\n", err)
	} else {
		fmt.Println("✅ Online")
	}
	return nil
}

// toggleCmd flips the auto-save mode
var toggleCmd = &cobra.Command{
	Use:   "toggle <off|on|prompt>",
	Short: "Set the auto-save mode",
	Long: `Set the auto-save mode for the current project, or globally with
--global. The project setting overrides the global one.

Examples:
  # Enable auto-save for this project
  vmem toggle on

  # Ask before every automatic save, everywhere
  vmem toggle prompt --global`,
	Args: cobra.ExactArgs(1),
	RunE: runToggle,
}

// runToggle handles the toggle command
func runToggle(cmd *cobra.Command, args []string) error {
	mode := autosave.Mode(strings.ToLower(args[0]))
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q (must be off, on, or prompt)", args[0])
	}

	store, err := autosave.NewStore()
	if err != nil {
		return err
	}

	if toggleGlobal {
		if err := store.SetGlobal(mode); err != nil {
			return err
		}
		fmt.Printf("✓ Global auto-save set to: %s\n", mode)
		return nil
	}

	if err := store.SetProject(mode); err != nil {
		return err
	}
	fmt.Printf("✓ Project auto-save set to: %s\n", mode)
	return nil
}

// pingCmd checks server connectivity
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check server connectivity",
	Long: `Probe the vmemd health endpoint and report the round-trip time.

Examples:
  vmem ping`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

// runPing handles the ping command
func runPing(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := env.api.Health(ctx); err != nil {
		return fmt.Errorf("cannot reach vmemd at %s: %w", env.cfg.BaseURL, err)
	}
	fmt.Printf("✓ Connected to vmemd (%dms)\n", time.Since(start).Milliseconds())
	fmt.Printf("  URL: %s\n", env.cfg.BaseURL)
	return nil
}
