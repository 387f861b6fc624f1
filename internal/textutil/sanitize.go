package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTitleLimit caps sanitized page titles used in file names.
const DefaultTitleLimit = 50

// SanitizeTitle converts a page title into a filesystem-safe token. Accents
// are folded to their base letters, every other non-alphanumeric run becomes a
// single underscore, and the result is cut to limit runes. Returns "untitled"
// when nothing usable remains.
func SanitizeTitle(title string, limit int) string {
	if limit <= 0 {
		limit = DefaultTitleLimit
	}
	folded := foldMarks(strings.TrimSpace(title))

	var b strings.Builder
	count := 0
	pendingSep := false
	for _, r := range folded {
		if count >= limit {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && count > 0 {
				b.WriteByte('_')
				count++
				if count >= limit {
					break
				}
			}
			pendingSep = false
			b.WriteRune(r)
			count++
			continue
		}
		pendingSep = true
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "untitled"
	}
	return out
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

func foldMarks(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}
