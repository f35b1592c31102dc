// Package main implements the vmem CLI for saving and retrieving
// memories from a vmemd server.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vmemd/internal/autosave"
	"github.com/fyrsmithlabs/vmemd/internal/config"
	"github.com/fyrsmithlabs/vmemd/internal/project"
	"github.com/fyrsmithlabs/vmemd/internal/retention"
	"github.com/fyrsmithlabs/vmemd/internal/secrets"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

var (
	// serverURL overrides the configured vmemd address when set
	serverURL string
	// noRedact skips secret redaction on the save paths
	noRedact bool
	// version information (set via ldflags during build)
	version = "dev"
)

// separator matches the banner width used throughout the listings.
const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmem",
	Short: "Vector memory CLI for AI coding agents",
	Long: `vmem saves short notes and long-form compacts to a vmemd server and
retrieves them by semantic similarity.

Commands default to the current project's partition, derived from the
git worktree directory name. Use --global to address the shared
partition instead.

Configuration comes from the environment: VMEM_BASE_URL,
VMEM_AUTH_TOKEN, VMEM_TIMEOUT, VMEM_COMPACT_LIMIT.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "vmemd server URL (overrides VMEM_BASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&noRedact, "no-redact", false, "skip secret redaction before saving")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vmem by Fyrsmith Labs\n")
		fmt.Printf("Version: %s\n", version)
	},
}

// cliEnv bundles the client-side dependencies a command needs. Commands
// that only touch local files construct their pieces directly instead.
type cliEnv struct {
	cfg     *config.ClientConfig
	api     *client.Client
	store   *retention.Store
	saves   *autosave.Store
	project *project.Info
}

// newEnv loads the environment configuration and wires the shared
// plumbing: API client, retention store, auto-save store, and the
// detected project identity.
func newEnv() (*cliEnv, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if serverURL != "" {
		cfg.BaseURL = strings.TrimRight(serverURL, "/")
	}

	api, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		AuthToken: cfg.AuthToken.Value(),
		Timeout:   cfg.Timeout.Duration(),
	})
	if err != nil {
		return nil, err
	}

	store, err := retention.NewStore(client.NewRemote(api), retention.Config{CompactLimit: cfg.CompactLimit}, zap.NewNop())
	if err != nil {
		return nil, err
	}

	saves, err := autosave.NewStore()
	if err != nil {
		return nil, err
	}

	info, err := project.Detect("")
	if err != nil {
		return nil, err
	}

	return &cliEnv{cfg: cfg, api: api, store: store, saves: saves, project: info}, nil
}

// scope resolves the partition a command addresses.
func (e *cliEnv) scope(global bool) retention.Scope {
	if global {
		return retention.GlobalScope()
	}
	return retention.ProjectScope(e.project.Slug)
}

// redactSecrets scrubs content before transmission. Returns the scrubbed
// text and the number of secrets removed; redaction can be disabled with
// --no-redact or VMEM_NO_REDACT.
func (e *cliEnv) redactSecrets(content string) (string, int, error) {
	if redactDisabled() {
		return content, 0, nil
	}
	res, err := secrets.Redact(content, secrets.RedactOptions{
		ProjectDir: e.project.Root,
		UserPath:   secrets.UserAllowlistPath(),
	})
	if err != nil {
		return "", 0, fmt.Errorf("secret redaction failed: %w", err)
	}
	return res.Content, res.Audit.Summary.TotalSecrets, nil
}

func redactDisabled() bool {
	if noRedact {
		return true
	}
	switch strings.ToLower(os.Getenv("VMEM_NO_REDACT")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// readText returns the positional text argument, or stdin when the
// argument is absent or "-".
func readText(args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

// confirm asks a yes/no question on the terminal.
func confirm(question string) bool {
	fmt.Printf("%s (y/n): ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// printJSON renders v as indented JSON on w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// metadataDate extracts the date part of a created_at metadata value.
// Returns empty when the field is missing.
func metadataDate(meta map[string]any) string {
	s, _ := meta["created_at"].(string)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// metadataTags extracts the tags metadata value, which arrives as
// []any after a JSON round trip.
func metadataTags(meta map[string]any) []string {
	switch t := meta["tags"].(type) {
	case []string:
		return t
	case []any:
		tags := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

// entryDate formats an entry timestamp as a date, "Unknown" when never
// set.
func entryDate(e retention.Entry) string {
	if e.CreatedAt.IsZero() {
		return "Unknown"
	}
	return e.CreatedAt.Format("2006-01-02")
}
