// Package reasoner is the opaque prompt -> text capability (spec.md §7)
// used by the Compressor's map-reduce path and the Reflector's relationship
// proposal step. It is deliberately model-agnostic: callers never see which
// chat model answered, only the Reasoner interface.
package reasoner

import "context"

// Reasoner sends a single prompt to a reasoning model and returns its text
// response. A nil Reasoner means "no reasoning model configured" — callers
// must treat that as a normal, non-error condition and fall back to their
// deterministic path.
type Reasoner interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
