package blockstore

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeContentHash derives the stable hash used to detect change and key
// the embedding cache (spec.md §3): SHA-256 over the body plus a
// canonicalized, sorted-key rendering of the frontmatter, so map iteration
// order and cosmetic YAML formatting never perturb the hash.
func ComputeContentHash(b *Block) string {
	h := sha256.New()
	h.Write([]byte(canonicalFrontmatter(b)))
	h.Write([]byte("\x00"))
	h.Write([]byte(b.Body))
	return hex.EncodeToString(h.Sum(nil))
}
