package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	zeroWidth         = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "", "\u00a0", " ")
	siteSuffixPattern = regexp.MustCompile(`(?i)\s*[|\-–—]\s*(linkedin|ebay|newegg|careerbuilder|we work remotely|wikipedia|scholarshipdb(?:\.net)?|scholars4dev)\s*$`)
	titleNoise        = []string{"new listing", "opens in a new window or tab", "sponsored"}
)

// Collapse trims s and squeezes inner whitespace runs to one space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(zeroWidth.Replace(s)), " ")
}

// Title cleans a scraped listing title.
func Title(raw string) string {
	t := Collapse(raw)
	for {
		stripped := false
		for _, noise := range titleNoise {
			n := len(noise)
			if len(t) >= n && strings.EqualFold(t[:n], noise) {
				t = strings.TrimSpace(t[n:])
				stripped = true
				break
			}
			if len(t) >= n && strings.EqualFold(t[len(t)-n:], noise) {
				t = strings.TrimSpace(t[:len(t)-n])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	t = siteSuffixPattern.ReplaceAllString(t, "")
	return strings.TrimSpace(t)
}

// Key builds a dedup key from parts: lowercase, accents removed,
// punctuation dropped and whitespace collapsed. Parts are joined by "|".
func Key(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, fold(p))
	}
	return strings.Join(out, "|")
}

func fold(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
