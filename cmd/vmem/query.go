package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/vmemd/internal/retention"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

var (
	queryGlobal bool
	queryTopK   int
	queryJSON   bool

	searchTopK int

	historyGlobal bool
	historyLimit  int
)

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryGlobal, "global", false, "query the global collection")
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 5, "number of results to return")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output matches as JSON")

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 3, "number of results to keep after merging")

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyGlobal, "global", false, "list the global collection")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of entries to show")
}

// queryCmd searches one collection by semantic similarity
var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search vector storage",
	Long: `Search the project's collection (or the global one) by semantic
similarity. Matches with near-zero similarity are filtered out before
display.

Examples:
  # Search the current project
  vmem query "how do we run migrations"

  # Search the global collection, more results
  vmem query "terraform state locking" --global --top-k 10`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

// runQuery handles the query command
func runQuery(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	resp, err := env.api.Query(cmd.Context(), env.scope(queryGlobal), args[0], queryTopK)
	if err != nil {
		return fmt.Errorf("querying: %w", err)
	}

	matches := client.SignificantMatches(resp.Matches)
	if queryJSON {
		return printJSON(os.Stdout, matches)
	}
	printMatches(os.Stdout, matches, resp.Collection)
	return nil
}

// searchCmd searches the project and global collections together
var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search both project and global collections",
	Long: `Search the project and global collections with one query, merge the
results by similarity, and keep the best top-k.

Examples:
  vmem search "redis connection pooling"`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// runSearch handles the search command
func runSearch(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	proj, err := env.api.Query(cmd.Context(), env.scope(false), args[0], searchTopK)
	if err != nil {
		return fmt.Errorf("querying project collection: %w", err)
	}
	glob, err := env.api.Query(cmd.Context(), retention.GlobalScope(), args[0], searchTopK)
	if err != nil {
		return fmt.Errorf("querying global collection: %w", err)
	}

	hits := mergeHits(
		client.SignificantMatches(proj.Matches), proj.Collection,
		client.SignificantMatches(glob.Matches), glob.Collection,
		searchTopK,
	)
	printHits(os.Stdout, hits)
	return nil
}

// historyCmd lists recent saves
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent saves",
	Long: `List the most recent saves in the project's collection (or the
global one), newest first.

Examples:
  vmem history
  vmem history --global --limit 25`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

// runHistory handles the history command
func runHistory(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}

	resp, err := env.api.List(cmd.Context(), env.scope(historyGlobal), historyLimit, 0)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	if len(resp.Documents) == 0 {
		fmt.Printf("No saves found in %s\n", resp.Collection)
		return nil
	}

	fmt.Println(separator)
	fmt.Printf("📜 Recent saves (%s):\n", resp.Collection)
	fmt.Println(separator)
	for i, doc := range resp.Documents {
		created := metadataDate(doc.Metadata)
		if created == "" {
			created = "Unknown"
		}
		fmt.Printf("[%d] %s | %s\n", i+1, created, retention.PreviewText(doc.Text, 50))
	}
	fmt.Printf("\nTotal: %d entries\n", len(resp.Documents))
	return nil
}

// printMatches renders matches as a readable listing.
func printMatches(w io.Writer, matches []client.Match, collection string) {
	if len(matches) == 0 {
		fmt.Fprintf(w, "No relevant results found in %s\n", collection)
		return
	}

	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "📚 Results from %s:\n", collection)
	fmt.Fprintln(w, separator)

	for i, m := range matches {
		fmt.Fprintf(w, "\n[%d] Similarity: %.2f%%\n", i+1, m.Similarity*100)
		fmt.Fprintln(w, m.Text)
		if created := metadataDate(m.Metadata); created != "" {
			fmt.Fprintf(w, "   Saved: %s\n", created)
		}
		if tags := metadataTags(m.Metadata); len(tags) > 0 {
			fmt.Fprintf(w, "   Tags: %s\n", strings.Join(tags, ", "))
		}
	}
}

// searchHit pairs a match with the collection it came from.
type searchHit struct {
	client.Match
	Collection string `json:"collection"`
}

// mergeHits interleaves two result sets by descending similarity and
// caps the merged list at topK. Equal scores keep project results ahead
// of global ones.
func mergeHits(project []client.Match, projectColl string, global []client.Match, globalColl string, topK int) []searchHit {
	hits := make([]searchHit, 0, len(project)+len(global))
	for _, m := range project {
		hits = append(hits, searchHit{Match: m, Collection: projectColl})
	}
	for _, m := range global {
		hits = append(hits, searchHit{Match: m, Collection: globalColl})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// printHits renders merged search results with their source collection.
func printHits(w io.Writer, hits []searchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No relevant results found")
		return
	}

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "📚 Results across project and global:")
	fmt.Fprintln(w, separator)

	for i, h := range hits {
		fmt.Fprintf(w, "\n[%d] Similarity: %.2f%% (%s)\n", i+1, h.Similarity*100, h.Collection)
		fmt.Fprintln(w, h.Text)
		if created := metadataDate(h.Metadata); created != "" {
			fmt.Fprintf(w, "   Saved: %s\n", created)
		}
	}
}
