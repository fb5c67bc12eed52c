// Package dedupe collapses publications that several sources reported for
// the same attorney.
package dedupe

import (
	"strings"

	"github.com/ppiankov/gazette/internal/model"
	"github.com/ppiankov/gazette/internal/normalize"
)

// PrefixLength is how many runes of the body take part in the key
const PrefixLength = 200

// Key identifies a publication for deduplication: attorney name,
// jurisdiction and the first PrefixLength runes of the sanitized body.
// Distinct publications sharing all three collapse into one.
func Key(p model.Publication) string {
	return KeyWithPrefix(p, PrefixLength)
}

// KeyWithPrefix is Key with a custom body prefix length
func KeyWithPrefix(p model.Publication, prefix int) string {
	if prefix <= 0 {
		prefix = PrefixLength
	}

	var b strings.Builder
	b.WriteString(p.AttorneyName)
	b.WriteByte(0)
	b.WriteString(p.Jurisdiction)
	b.WriteByte(0)
	b.WriteString(normalize.Truncate(p.Content, prefix))
	return b.String()
}

// Dedupe keeps the first publication for each key, preserving input order
func Dedupe(pubs []model.Publication) []model.Publication {
	return WithPrefix(pubs, PrefixLength)
}

// WithPrefix is Dedupe with a custom body prefix length
func WithPrefix(pubs []model.Publication, prefix int) []model.Publication {
	seen := make(map[string]struct{}, len(pubs))
	out := make([]model.Publication, 0, len(pubs))

	for _, p := range pubs {
		k := KeyWithPrefix(p, prefix)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}

	return out
}
