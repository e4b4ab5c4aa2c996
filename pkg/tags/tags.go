// Package tags normalizes aliased skill and role labels to a single
// canonical form. Tags cross several trust boundaries (content files,
// profile files, saved games), so every entry point runs through the
// canonicalizer before the rest of the engine sees the value.
package tags

// DefaultAliases maps every known alias to its canonical tag. Canonical
// tags map to themselves, which keeps Canonical total and idempotent.
var DefaultAliases = map[string]string{
	"Diplomat": "Emissary",
	"Emissary": "Emissary",
	"Judge":    "Arbiter",
	"Arbiter":  "Arbiter",
}

// Canonicalizer resolves tag aliases against a many-to-one alias table.
type Canonicalizer struct {
	aliases map[string]string
}

// NewCanonicalizer builds a Canonicalizer from an alias table. A nil
// table falls back to DefaultAliases.
func NewCanonicalizer(aliases map[string]string) *Canonicalizer {
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &Canonicalizer{aliases: aliases}
}

// Canonical returns the canonical form of a tag. Unknown tags are
// already canonical and pass through unchanged.
func (c *Canonicalizer) Canonical(tag string) string {
	if canonical, ok := c.aliases[tag]; ok {
		return canonical
	}
	return tag
}

// CanonicalizeList maps every tag to its canonical form, dropping
// duplicates after mapping. First-seen order is preserved, and the
// result is stable under re-application.
func (c *Canonicalizer) CanonicalizeList(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, tag := range list {
		canonical := c.Canonical(tag)
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}

// Contains reports whether the canonical form of tag is present in
// list, comparing both sides in canonical form.
func (c *Canonicalizer) Contains(list []string, tag string) bool {
	want := c.Canonical(tag)
	for _, t := range list {
		if c.Canonical(t) == want {
			return true
		}
	}
	return false
}
