package blockstore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// knownFrontmatterKeys are extracted into typed Block fields; anything else
// round-trips through Extra (spec.md §6: "Unknown keys are preserved").
var knownFrontmatterKeys = map[string]bool{
	"id": true, "title": true, "created": true, "updated": true,
	"tags": true, "content_hash": true, "access_count": true,
	"last_access": true, "information_type": true, "archived": true,
}

// rawFrontmatter is the generic key->value map parsed from YAML before
// typed extraction, allowing arbitrary unknown keys.
type rawFrontmatter map[string]interface{}

// parseFile splits a block file's raw bytes into frontmatter and body and
// decodes the frontmatter into a Block. The id/title/created keys are
// required per spec.md §6.
func parseFile(data []byte) (*Block, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return nil, fmt.Errorf("missing frontmatter delimiter")
	}
	rest := text[len(frontmatterDelim)+1:]
	idx := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if idx < 0 {
		return nil, fmt.Errorf("unterminated frontmatter block")
	}
	fmText := rest[:idx]
	body := rest[idx+len(frontmatterDelim)+2:]

	var raw rawFrontmatter
	if err := yaml.Unmarshal([]byte(fmText), &raw); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}

	b := &Block{Extra: map[string]interface{}{}, Body: body}

	id, _ := raw["id"].(string)
	title, _ := raw["title"].(string)
	if id == "" {
		return nil, fmt.Errorf("frontmatter missing required key: id")
	}
	if title == "" {
		return nil, fmt.Errorf("frontmatter missing required key: title")
	}
	b.ID = id
	b.Title = title

	created, err := parseTimeField(raw["created"])
	if err != nil {
		return nil, fmt.Errorf("frontmatter missing or invalid key: created: %w", err)
	}
	b.CreatedAt = created

	if v, ok := raw["updated"]; ok {
		if t, err := parseTimeField(v); err == nil {
			b.UpdatedAt = t
		}
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}

	if v, ok := raw["tags"]; ok {
		b.Tags = toStringSlice(v)
	}
	if v, ok := raw["content_hash"].(string); ok {
		b.ContentHash = v
	}
	if v, ok := raw["access_count"]; ok {
		b.AccessCount = toInt(v)
	}
	if v, ok := raw["last_access"]; ok {
		if t, err := parseTimeField(v); err == nil {
			b.LastAccess = t
		}
	}
	if v, ok := raw["information_type"].(string); ok && v != "" {
		b.InformationType = InformationType(v)
	} else {
		b.InformationType = Static
	}
	if v, ok := raw["archived"]; ok {
		b.Archived = toBool(v)
	}

	for k, v := range raw {
		if !knownFrontmatterKeys[k] {
			b.Extra[k] = v
		}
	}

	return b, nil
}

// render serializes a Block back into frontmatter+body bytes.
func render(b *Block) []byte {
	raw := rawFrontmatter{}
	for k, v := range b.Extra {
		raw[k] = v
	}
	raw["id"] = b.ID
	raw["title"] = b.Title
	raw["created"] = b.CreatedAt.UTC().Format(time.RFC3339)
	raw["updated"] = b.UpdatedAt.UTC().Format(time.RFC3339)
	if len(b.Tags) > 0 {
		raw["tags"] = b.Tags
	}
	if b.ContentHash != "" {
		raw["content_hash"] = b.ContentHash
	}
	raw["access_count"] = b.AccessCount
	if !b.LastAccess.IsZero() {
		raw["last_access"] = b.LastAccess.UTC().Format(time.RFC3339)
	}
	raw["information_type"] = string(b.InformationType)
	raw["archived"] = b.Archived

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := yaml.MapSlice{}
	for _, k := range keys {
		ordered = append(ordered, yaml.MapItem{Key: k, Value: raw[k]})
	}

	fmBytes, err := yaml.Marshal(ordered)
	if err != nil {
		// raw contains only YAML-safe scalars/slices/maps; this cannot fail
		// in practice. Fall back to an empty frontmatter rather than panic.
		fmBytes = []byte{}
	}

	var sb strings.Builder
	sb.WriteString(frontmatterDelim)
	sb.WriteString("\n")
	sb.Write(fmBytes)
	sb.WriteString(frontmatterDelim)
	sb.WriteString("\n")
	sb.WriteString(b.Body)
	return []byte(sb.String())
}

// canonicalFrontmatter produces a stable, sorted-key representation of the
// frontmatter used for content hashing, independent of map iteration order.
func canonicalFrontmatter(b *Block) string {
	raw := rawFrontmatter{}
	for k, v := range b.Extra {
		raw[k] = v
	}
	raw["id"] = b.ID
	raw["title"] = b.Title
	if len(b.Tags) > 0 {
		sortedTags := append([]string(nil), b.Tags...)
		sort.Strings(sortedTags)
		raw["tags"] = sortedTags
	}
	raw["information_type"] = string(b.InformationType)

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%v\n", k, raw[k])
	}
	return sb.String()
}

func parseTimeField(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339, t)
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %v", v)
	}
}

func toStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toInt(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func toBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
