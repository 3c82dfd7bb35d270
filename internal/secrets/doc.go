// Package secrets provides secret detection and redaction for text sent to a
// reasoning model: a hand-rolled regexp ruleset layered with the Gitleaks
// detector for the provider-specific credential formats the regexp rules
// don't cover.
//
// Every reasoner prompt built by internal/compressor and internal/reflection
// passes through a Scrubber first. Findings preserve rule IDs and counts for
// metrics while the matched secret value itself is never retained.
package secrets
