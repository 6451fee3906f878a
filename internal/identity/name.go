package identity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// genericTransliterator is the fallback when no language-aware service is
// wired: a plain unicode-to-ASCII mapping.
type genericTransliterator struct{}

func (genericTransliterator) Transliterate(s string) (string, error) {
	return unidecode.Unidecode(s), nil
}

// SanitizeTagName turns an arbitrary artist name into tag-namespace form.
// Non-ASCII input is romanized first through the configured transliterator,
// falling back to the generic mapping when that fails or still leaves
// non-ASCII runes. Every character outside [A-Za-z0-9-_()] becomes an
// underscore, qualifier parentheses are normalized to read name_(qualifier),
// and stray underscores and parentheses at the edges are stripped.
func (r *Resolver) SanitizeTagName(name string) string {
	name = norm.NFKC.String(strings.TrimSpace(name))

	if !isASCII(name) {
		romanized, err := r.translit.Transliterate(name)
		if err != nil || !isASCII(romanized) {
			if err != nil {
				r.log.Warn("Transliteration of %q failed, using generic mapping: %v", name, err)
			}
			romanized = unidecode.Unidecode(name)
		}
		name = romanized
	}

	var b strings.Builder
	b.Grow(len(name) + 4)
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		case c == '(':
			b.WriteString("_(")
		case c == ')':
			b.WriteString(")_")
		default:
			b.WriteByte('_')
		}
	}
	name = b.String()

	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.ReplaceAll(name, "(_", "(")
	name = strings.ReplaceAll(name, "_)", ")")
	return strings.Trim(name, "_() \t")
}

// ValidNewTagName reports whether a synthesized name is acceptable: longer
// than five characters, balanced parentheses and brackets, and not already
// taken in the tag database.
func (r *Resolver) ValidNewTagName(name string) (bool, error) {
	if len(name) <= 5 {
		return false, nil
	}
	if strings.Count(name, "(") != strings.Count(name, ")") {
		return false, nil
	}
	if strings.Count(name, "[") != strings.Count(name, "]") {
		return false, nil
	}

	existing, err := r.store.FindTagByName(name)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}

func isASCII(s string) bool {
	for _, c := range s {
		if c > unicode.MaxASCII {
			return false
		}
	}
	return true
}
