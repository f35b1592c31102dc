package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/vmemd/internal/autosave"
	"github.com/fyrsmithlabs/vmemd/internal/retention"
	"github.com/fyrsmithlabs/vmemd/internal/secrets"
	"github.com/fyrsmithlabs/vmemd/pkg/client"
)

// compactPreviewRunes caps the first-line preview in compact_list output.
const compactPreviewRunes = 60

// scope resolves which partition a tool call addresses. Project scope
// needs a configured project; global is always available.
func (s *Server) scope(global bool) (retention.Scope, error) {
	if global {
		return retention.GlobalScope(), nil
	}
	if s.projectID == "" {
		return retention.Scope{}, fmt.Errorf("no project configured: run from a project directory or pass global=true")
	}
	return retention.ProjectScope(s.projectID), nil
}

// redactText scrubs secrets from text about to be stored and reports how
// many were replaced. Scrubbing is skipped when redaction is disabled.
func (s *Server) redactText(text string) (string, int, error) {
	if !s.redact {
		return text, 0, nil
	}
	res, err := secrets.Redact(text, secrets.RedactOptions{
		ProjectDir: s.projectDir,
		UserPath:   secrets.UserAllowlistPath(),
	})
	if err != nil {
		return "", 0, fmt.Errorf("secret redaction failed: %w", err)
	}
	return res.Content, res.Audit.Summary.TotalSecrets, nil
}

func (s *Server) autosaveMode() autosave.Mode {
	if s.autosave == nil {
		return autosave.ModeOff
	}
	return s.autosave.Load().Effective()
}

func formatEntryTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerMemoryTools()
	s.registerCompactTools()
	s.registerStatusTool()
}

// ===== MEMORY TOOLS =====

type memorySaveInput struct {
	Text       string `json:"text" jsonschema:"required,Memory text to store"`
	Tags       string `json:"tags,omitempty" jsonschema:"Comma-separated tags kept in metadata"`
	Agent      string `json:"agent,omitempty" jsonschema:"Agent name recorded in metadata"`
	Importance int    `json:"importance,omitempty" jsonschema:"Importance rating recorded in metadata"`
	Global     bool   `json:"global,omitempty" jsonschema:"Write to the global partition instead of the project"`
}

type memorySaveOutput struct {
	ID         string `json:"id" jsonschema:"Stored document id"`
	Collection string `json:"collection" jsonschema:"Collection the memory landed in"`
	Redactions int    `json:"redactions" jsonschema:"Secrets redacted before the write"`
}

type memoryQueryInput struct {
	Query  string `json:"query" jsonschema:"required,Search text"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"Maximum matches to return (server default 5)"`
	Global bool   `json:"global,omitempty" jsonschema:"Search the global partition instead of the project"`
}

type queryMatch struct {
	ID         string         `json:"id" jsonschema:"Document id"`
	Text       string         `json:"text" jsonschema:"Stored text"`
	Similarity float64        `json:"similarity" jsonschema:"Cosine similarity of the match"`
	Metadata   map[string]any `json:"metadata,omitempty" jsonschema:"Stored metadata"`
}

type memoryQueryOutput struct {
	Collection string       `json:"collection" jsonschema:"Collection searched"`
	Count      int          `json:"count" jsonschema:"Number of matches after noise filtering"`
	Matches    []queryMatch `json:"matches" jsonschema:"Matches ordered most similar first"`
}

func (s *Server) registerMemoryTools() {
	// memory_save
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_save",
		Description: "Save a memory for later semantic recall",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memorySaveInput) (*mcp.CallToolResult, memorySaveOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "memory_save")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "memory_save")
			s.metrics.RecordInvocation(ctx, "memory_save", time.Since(start), toolErr)
		}()

		out, err := s.memorySave(ctx, args)
		if err != nil {
			toolErr = err
			return nil, memorySaveOutput{}, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Memory saved to %s: %s", out.Collection, out.ID)},
			},
		}, out, nil
	})

	// memory_query
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_query",
		Description: "Search stored memories by semantic similarity",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memoryQueryInput) (*mcp.CallToolResult, memoryQueryOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "memory_query")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "memory_query")
			s.metrics.RecordInvocation(ctx, "memory_query", time.Since(start), toolErr)
		}()

		out, err := s.memoryQuery(ctx, args)
		if err != nil {
			toolErr = err
			return nil, memoryQueryOutput{}, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Found %d matches in %s", out.Count, out.Collection)},
			},
		}, out, nil
	})
}

func (s *Server) memorySave(ctx context.Context, args memorySaveInput) (memorySaveOutput, error) {
	if strings.TrimSpace(args.Text) == "" {
		return memorySaveOutput{}, fmt.Errorf("text is required")
	}
	scope, err := s.scope(args.Global)
	if err != nil {
		return memorySaveOutput{}, err
	}

	text, redactions, err := s.redactText(args.Text)
	if err != nil {
		return memorySaveOutput{}, err
	}

	metadata := map[string]any{
		"type":   "note",
		"source": "mcp",
	}
	if args.Agent != "" {
		metadata["agent"] = args.Agent
	}
	if args.Tags != "" {
		metadata["tags"] = args.Tags
	}
	if args.Importance > 0 {
		metadata["importance"] = args.Importance
	}

	resp, err := s.api.Write(ctx, scope, text, metadata)
	if err != nil {
		return memorySaveOutput{}, fmt.Errorf("memory save failed: %w", err)
	}

	return memorySaveOutput{
		ID:         resp.ID,
		Collection: resp.Collection,
		Redactions: redactions,
	}, nil
}

func (s *Server) memoryQuery(ctx context.Context, args memoryQueryInput) (memoryQueryOutput, error) {
	if strings.TrimSpace(args.Query) == "" {
		return memoryQueryOutput{}, fmt.Errorf("query is required")
	}
	scope, err := s.scope(args.Global)
	if err != nil {
		return memoryQueryOutput{}, err
	}

	resp, err := s.api.Query(ctx, scope, args.Query, args.TopK)
	if err != nil {
		return memoryQueryOutput{}, fmt.Errorf("memory query failed: %w", err)
	}

	matches := client.SignificantMatches(resp.Matches)
	out := memoryQueryOutput{
		Collection: resp.Collection,
		Count:      len(matches),
		Matches:    make([]queryMatch, 0, len(matches)),
	}
	for _, m := range matches {
		out.Matches = append(out.Matches, queryMatch{
			ID:         m.ID,
			Text:       m.Text,
			Similarity: m.Similarity,
			Metadata:   m.Metadata,
		})
	}
	return out, nil
}

// ===== COMPACT TOOLS =====

type compactSaveInput struct {
	Text   string `json:"text" jsonschema:"required,Compact summary text"`
	Global bool   `json:"global,omitempty" jsonschema:"Write to the global partition instead of the project"`
}

type compactSaveOutput struct {
	ID         string `json:"id" jsonschema:"Stored compact id"`
	Retained   int    `json:"retained" jsonschema:"Compacts stored after rotation"`
	Limit      int    `json:"limit" jsonschema:"Retention limit"`
	Evicted    int    `json:"evicted" jsonschema:"Old compacts rotated out by this save"`
	Redactions int    `json:"redactions" jsonschema:"Secrets redacted before the write"`
	Warning    string `json:"warning,omitempty" jsonschema:"Set when the partition is temporarily over the retention limit"`
}

type compactListInput struct {
	Global bool `json:"global,omitempty" jsonschema:"List the global partition instead of the project"`
}

type compactEntry struct {
	Index     int    `json:"index" jsonschema:"Recency rank, 1 is newest"`
	ID        string `json:"id" jsonschema:"Document id"`
	CreatedAt string `json:"created_at,omitempty" jsonschema:"Creation time"`
	Preview   string `json:"preview" jsonschema:"First line of the compact, truncated"`
}

type compactListOutput struct {
	Count   int            `json:"count" jsonschema:"Number of stored compacts"`
	Limit   int            `json:"limit" jsonschema:"Retention limit"`
	Entries []compactEntry `json:"entries" jsonschema:"Compacts ordered newest first"`
}

func (s *Server) registerCompactTools() {
	// compact_save
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compact_save",
		Description: "Store a compact conversation summary, rotating out the oldest beyond the retention limit",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args compactSaveInput) (*mcp.CallToolResult, compactSaveOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compact_save")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "compact_save")
			s.metrics.RecordInvocation(ctx, "compact_save", time.Since(start), toolErr)
		}()

		out, err := s.compactSave(ctx, args)
		if err != nil {
			toolErr = err
			return nil, compactSaveOutput{}, err
		}

		text := fmt.Sprintf("Compact saved: %s (%d/%d retained)", out.ID, out.Retained, out.Limit)
		if out.Warning != "" {
			text = fmt.Sprintf("Compact saved: %s (%s)", out.ID, out.Warning)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: text},
			},
		}, out, nil
	})

	// compact_list
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compact_list",
		Description: "List stored compacts, newest first",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args compactListInput) (*mcp.CallToolResult, compactListOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compact_list")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "compact_list")
			s.metrics.RecordInvocation(ctx, "compact_list", time.Since(start), toolErr)
		}()

		out, err := s.compactList(ctx, args)
		if err != nil {
			toolErr = err
			return nil, compactListOutput{}, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Found %d compacts (limit %d)", out.Count, out.Limit)},
			},
		}, out, nil
	})
}

func (s *Server) compactSave(ctx context.Context, args compactSaveInput) (compactSaveOutput, error) {
	scope, err := s.scope(args.Global)
	if err != nil {
		return compactSaveOutput{}, err
	}

	text, redactions, err := s.redactText(args.Text)
	if err != nil {
		return compactSaveOutput{}, err
	}

	res, err := s.retention.AppendCompact(ctx, scope, text, map[string]any{"source": "mcp"})

	// An over-retention error means the compact landed and only the
	// rotation is behind. That is a warning on a successful save, not a
	// failure.
	var overErr *retention.OverRetentionError
	if errors.As(err, &overErr) {
		err = nil
	}
	if err != nil {
		return compactSaveOutput{}, fmt.Errorf("compact save failed: %w", err)
	}

	out := compactSaveOutput{
		ID:         res.Entry.ID,
		Retained:   res.Retained,
		Limit:      res.Limit,
		Evicted:    len(res.Evicted),
		Redactions: redactions,
	}
	if overErr != nil {
		out.Warning = overErr.Error()
	}
	return out, nil
}

func (s *Server) compactList(ctx context.Context, args compactListInput) (compactListOutput, error) {
	scope, err := s.scope(args.Global)
	if err != nil {
		return compactListOutput{}, err
	}

	entries, err := s.retention.ListCompacts(ctx, scope)
	if err != nil {
		return compactListOutput{}, fmt.Errorf("compact list failed: %w", err)
	}

	out := compactListOutput{
		Count:   len(entries),
		Limit:   s.retention.CompactLimit(),
		Entries: make([]compactEntry, 0, len(entries)),
	}
	for i, e := range entries {
		out.Entries = append(out.Entries, compactEntry{
			Index:     i + 1,
			ID:        e.ID,
			CreatedAt: formatEntryTime(e.CreatedAt),
			Preview:   retention.PreviewText(e.Text, compactPreviewRunes),
		})
	}
	return out, nil
}

// ===== STATUS TOOL =====

type memoryStatusInput struct{}

type memoryStatusOutput struct {
	ProjectID     string `json:"project_id,omitempty" jsonschema:"Configured project identifier"`
	APIURL        string `json:"api_url" jsonschema:"Base URL of the memory daemon"`
	ServerOK      bool   `json:"server_ok" jsonschema:"Whether the daemon answered the health probe"`
	AutoSave      string `json:"auto_save" jsonschema:"Effective auto-save mode (off, on, or prompt)"`
	RedactSecrets bool   `json:"redact_secrets" jsonschema:"Whether save paths scrub secrets"`
	CompactLimit  int    `json:"compact_limit" jsonschema:"Compacts retained per partition"`
}

func (s *Server) registerStatusTool() {
	// memory_status
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_status",
		Description: "Report daemon reachability, auto-save mode, and retention settings",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memoryStatusInput) (*mcp.CallToolResult, memoryStatusOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "memory_status")
		defer func() {
			s.metrics.DecrementActive(ctx, "memory_status")
			s.metrics.RecordInvocation(ctx, "memory_status", time.Since(start), nil)
		}()

		out := s.memoryStatus(ctx)

		state := "reachable"
		if !out.ServerOK {
			state = "unreachable"
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("vmemd %s at %s, auto-save %s", state, out.APIURL, out.AutoSave)},
			},
		}, out, nil
	})
}

// memoryStatus never fails: an unreachable daemon is data, reported in
// ServerOK.
func (s *Server) memoryStatus(ctx context.Context) memoryStatusOutput {
	out := memoryStatusOutput{
		ProjectID:     s.projectID,
		APIURL:        s.api.BaseURL(),
		AutoSave:      string(s.autosaveMode()),
		RedactSecrets: s.redact,
		CompactLimit:  s.retention.CompactLimit(),
	}
	out.ServerOK = s.api.Health(ctx) == nil
	return out
}
