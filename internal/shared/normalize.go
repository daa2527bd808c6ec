package shared

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parenthesized = regexp.MustCompile(`\([^)]*\)`)
	apostrophes   = strings.NewReplacer("'", "", "’", "")
	separators    = strings.NewReplacer("/", " ", "-", " ")
	whitespace    = regexp.MustCompile(`\s+`)
	leadingThe    = regexp.MustCompile(`(?i)^the\s+`)

	// Edition qualifiers, longest alternatives first, with an optional trailing year.
	editionPhrases = regexp.MustCompile(`(?i)\b(remastered|remaster|live version|radio edit|mono version|stereo version|single version|album version|bonus track)(\s+\d{4})?\b`)
	albumNoise     = regexp.MustCompile(`(?i)\b(remastered|deluxe|edition|version)\b`)
)

// NormalizeTitle strips parenthesized notes, apostrophes and edition qualifiers from
// a track title and collapses the remaining whitespace.
//
//	NormalizeTitle("Yesterday (Remastered 2009)") == "Yesterday"
func NormalizeTitle(s string) string {
	s = parenthesized.ReplaceAllString(s, " ")
	s = apostrophes.Replace(s)
	s = separators.Replace(s)
	s = editionPhrases.ReplaceAllString(s, " ")
	return collapse(s)
}

// NormalizeAlbum applies [NormalizeTitle] and then drops the bare words
// remastered, deluxe, edition and version wherever they appear.
func NormalizeAlbum(s string) string {
	s = NormalizeTitle(s)
	s = albumNoise.ReplaceAllString(s, " ")
	return collapse(s)
}

// NormalizeArtist removes a leading "The " and spells out ampersands.
//
// Only the exact, untrimmed value "The The" is returned unchanged. The article
// is matched at the very start of the raw value, so surrounding whitespace
// changes the outcome and is only collapsed afterwards.
func NormalizeArtist(s string) string {
	if s == "The The" {
		return s
	}
	s = leadingThe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", " and ")
	return collapse(s)
}

// FoldForCompare lowercases s, removes diacritics and punctuation, and collapses
// whitespace so that query and candidate strings compare on the same footing.
func FoldForCompare(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, folded)
	return collapse(folded)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
