package secrets

import (
	"fmt"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// gitleaksRulePrefix namespaces gitleaks rule IDs in Result.ByRule so they
// don't collide with the hand-rolled Rules' IDs.
const gitleaksRulePrefix = "gitleaks:"

// newGitleaksDetector builds a detector using Gitleaks' default ruleset.
// Kept as its own constructor (rather than a package-level var) so a failed
// config load surfaces at scrubber construction time, not on first Scrub.
func newGitleaksDetector() (*detect.Detector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("secrets: loading gitleaks default config: %w", err)
	}
	return d, nil
}

// gitleaksScan runs the Gitleaks detector over content and returns findings
// in the scrubber's own Finding/redaction shapes. Gitleaks reports positions
// as (line, column) pairs; lineOffsets converts those to the absolute byte
// offsets the rest of Scrub works in.
func gitleaksScan(d *detect.Detector, content string) ([]Finding, []redaction) {
	if d == nil {
		return nil, nil
	}

	raw := d.DetectString(content)
	if len(raw) == 0 {
		return nil, nil
	}

	offsets := lineOffsets(content)
	findings := make([]Finding, 0, len(raw))
	redactions := make([]redaction, 0, len(raw))

	for _, f := range raw {
		if f.StartLine < 0 || f.StartLine >= len(offsets) {
			continue
		}
		start := offsets[f.StartLine] + f.StartColumn
		end := offsets[f.StartLine] + f.EndColumn
		if start < 0 || end > len(content) || start >= end {
			continue
		}

		ruleID := gitleaksRulePrefix + f.RuleID
		findings = append(findings, Finding{
			RuleID:      ruleID,
			Description: f.Description,
			Severity:    "high",
			StartIndex:  start,
			EndIndex:    end,
			Line:        f.StartLine + 1,
		})
		redactions = append(redactions, redaction{start: start, end: end, ruleID: ruleID})
	}

	return findings, redactions
}

// lineOffsets returns the byte offset at which each line (0-indexed) begins.
func lineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}
