package secrets

import (
	"regexp"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksregexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Finding locates one detected secret inside the scanned content.
type Finding struct {
	RuleID   string // Gitleaks rule id, e.g. "openai-api-key"
	RuleDesc string
	Line     int // 1-based line number
	StartCol int
	EndCol   int
	Match    string // the matched secret value
}

// Detect scans content with the default Gitleaks ruleset and returns
// position-annotated findings. A nil allowlist scans with the stock rules.
func Detect(content string, allowlist *Allowlist) ([]Finding, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}

	if allowlist != nil {
		applyAllowlist(&detector.Config, allowlist)
	}

	raw := detector.DetectString(content)

	findings := make([]Finding, 0, len(raw))
	for _, f := range raw {
		findings = append(findings, Finding{
			RuleID:   f.RuleID,
			RuleDesc: f.Description,
			Line:     f.StartLine,
			StartCol: f.StartColumn,
			EndCol:   f.EndColumn,
			Match:    f.Secret,
		})
	}

	return findings, nil
}

// applyAllowlist appends a global allowlist entry to the Gitleaks config.
// Patterns were validated when the allowlist was loaded, so a compile
// failure here means a caller bypassed LoadAllowlists.
func applyAllowlist(cfg *gitleaksconfig.Config, allowlist *Allowlist) {
	entry := &gitleaksconfig.Allowlist{
		Description: "vmem user and project allowlist",
	}

	for _, pattern := range allowlist.Paths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("secrets: unvalidated path pattern reached detector: " + pattern)
		}
		entry.Paths = append(entry.Paths, (*gitleaksregexp.Regexp)(re))
	}

	for _, pattern := range allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			panic("secrets: unvalidated content pattern reached detector: " + pattern)
		}
		entry.Regexes = append(entry.Regexes, (*gitleaksregexp.Regexp)(re))
	}

	entry.StopWords = append(entry.StopWords, allowlist.Regexes...)

	cfg.Allowlists = append(cfg.Allowlists, entry)
}
