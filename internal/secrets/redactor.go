package secrets

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// previewLen is how many leading characters of a secret survive into
// redaction markers and audit entries.
const previewLen = 4

// RedactOptions selects the allowlist sources for a redaction pass.
type RedactOptions struct {
	ProjectDir string // directory searched for ProjectAllowlistFile, empty to skip
	UserPath   string // full path to the user allowlist file, empty to skip
}

// RedactResult is the scrubbed content plus its audit trail.
type RedactResult struct {
	Content string
	Audit   AuditLog
}

// Redact replaces every detected secret in content with a
// [REDACTED:rule-id:preview] marker. The marker keeps the rule id and the
// first characters of the match, so scrubbed text still reads sensibly and
// embeds usefully. Content without findings is returned unchanged.
func Redact(content string, opts RedactOptions) (RedactResult, error) {
	start := time.Now()

	allowlist, err := LoadAllowlists(opts.ProjectDir, opts.UserPath)
	if err != nil {
		return RedactResult{}, fmt.Errorf("loading allowlists: %w", err)
	}

	findings, err := Detect(content, allowlist)
	if err != nil {
		return RedactResult{}, fmt.Errorf("detecting secrets: %w", err)
	}

	audit := newAuditLog(findings, time.Since(start))

	if len(findings) == 0 {
		return RedactResult{Content: content, Audit: audit}, nil
	}

	return RedactResult{
		Content: replaceFindings(content, findings),
		Audit:   audit,
	}, nil
}

// replaceFindings splices markers over the matched spans. Findings are
// processed bottom-to-top and right-to-left so earlier column offsets stay
// valid while later ones are rewritten.
func replaceFindings(content string, findings []Finding) string {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line > sorted[j].Line
		}
		return sorted[i].StartCol > sorted[j].StartCol
	})

	lines := strings.Split(content, "\n")

	for _, finding := range sorted {
		if finding.Line < 1 || finding.Line > len(lines) {
			continue
		}
		line := lines[finding.Line-1]

		marker := fmt.Sprintf("[REDACTED:%s:%s]", finding.RuleID, preview(finding.Match, previewLen))

		if finding.StartCol >= 0 && finding.EndCol <= len(line) && finding.StartCol <= finding.EndCol {
			lines[finding.Line-1] = line[:finding.StartCol] + marker + line[finding.EndCol:]
		}
	}

	return strings.Join(lines, "\n")
}

// preview returns at most n leading bytes of s.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func newAuditLog(findings []Finding, elapsed time.Duration) AuditLog {
	redactions := make([]Redaction, 0, len(findings))
	ruleCounts := make(map[string]int)

	for _, f := range findings {
		redactions = append(redactions, Redaction{
			RuleID:      f.RuleID,
			RuleDesc:    f.RuleDesc,
			LineNumber:  f.Line,
			Column:      f.StartCol,
			OriginalLen: len(f.Match),
			Preview:     preview(f.Match, previewLen),
		})
		ruleCounts[f.RuleID]++
	}

	return AuditLog{
		Timestamp:  time.Now(),
		Redactions: redactions,
		Summary: Summary{
			TotalSecrets:     len(findings),
			UniqueRules:      len(ruleCounts),
			RuleCounts:       ruleCounts,
			ProcessingTimeMs: elapsed.Milliseconds(),
		},
	}
}
