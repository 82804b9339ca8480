package netflix

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Regional Netflix pages carry localized spellings that the search index
// often doesn't know. Digraph transliterations (ö -> oe, å -> aa) are tried
// before plain mark stripping because Scandinavian and German titles are
// usually indexed under the digraph form.
var digraphs = map[rune]string{
	'ä': "ae", 'Ä': "Ae",
	'ö': "oe", 'Ö': "Oe",
	'ü': "ue", 'Ü': "Ue",
	'å': "aa", 'Å': "Aa",
	'ø': "oe", 'Ø': "Oe",
	'æ': "ae", 'Æ': "Ae",
	'ß': "ss",
	'ð': "d", 'Ð': "D",
	'þ': "th", 'Þ': "Th",
}

// TitleVariants returns the spellings to try against the search index, in
// order: the raw title, a digraph transliteration and a plain ASCII form
// with combining marks stripped. Variants identical to an earlier entry are
// dropped, so a pure-ASCII title yields a single variant.
func TitleVariants(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	variants := []string{title}
	for _, v := range []string{transliterate(title), stripMarks(title)} {
		if v == "" {
			continue
		}
		seen := false
		for _, existing := range variants {
			if strings.EqualFold(existing, v) {
				seen = true
				break
			}
		}
		if !seen {
			variants = append(variants, v)
		}
	}
	return variants
}

func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := digraphs[r]; ok {
			b.WriteString(repl)
			continue
		}
		if r < unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		b.WriteString(unidecode.Unidecode(string(r)))
	}
	return strings.TrimSpace(b.String())
}

var markStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripMarks decomposes the string and drops combining marks, turning
// "Förlåt" into "Forlat". Characters that don't decompose (ø, ß) pass
// through unchanged.
func stripMarks(s string) string {
	out, _, err := transform.String(markStripper, s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(out)
}
