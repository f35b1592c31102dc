package secrets

import (
	"encoding/json"
	"time"
)

// AuditLog records what a redaction pass removed without storing the
// secrets themselves.
type AuditLog struct {
	Timestamp  time.Time   `json:"timestamp"`
	Source     string      `json:"source,omitempty"` // origin of the content, e.g. "cli-save"
	Redactions []Redaction `json:"redactions"`
	Summary    Summary     `json:"summary"`
}

// Redaction describes one removed secret. Only the length and a short
// preview of the original value are kept.
type Redaction struct {
	RuleID      string `json:"rule_id"`
	RuleDesc    string `json:"rule_desc"`
	LineNumber  int    `json:"line_number"`
	Column      int    `json:"column"`
	OriginalLen int    `json:"original_len"`
	Preview     string `json:"preview"`
}

// Summary aggregates a redaction pass.
type Summary struct {
	TotalSecrets     int            `json:"total_secrets"`
	UniqueRules      int            `json:"unique_rules"`
	RuleCounts       map[string]int `json:"rule_counts"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// JSON renders the audit log as compact JSON.
func (a *AuditLog) JSON() string {
	data, err := json.Marshal(a)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// PrettyJSON renders the audit log indented for terminal output.
func (a *AuditLog) PrettyJSON() string {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// HasRedactions reports whether the pass removed anything.
func (a *AuditLog) HasRedactions() bool {
	return len(a.Redactions) > 0
}
