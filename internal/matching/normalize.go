package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var remasterSuffixes = []string{
	" (remastered)",
	" (remaster)",
	" - remastered",
	" - remaster",
	" [remastered]",
	" [remaster]",
}

// Normalize lowercases, NFC-normalizes, strips featured-artist
// parentheticals and remaster/year suffixes, and collapses whitespace,
// per spec.md §4.1 step 1.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = stripFeaturedArtist(s)
	s = stripRemasterSuffix(s)
	s = stripTrailingYear(s)
	return collapseWhitespace(s)
}

// stripFeaturedArtist removes a trailing "(feat. ...)" / "(ft. ...)"
// parenthetical, which otherwise dominates title similarity scoring
// without carrying real identity information.
func stripFeaturedArtist(s string) string {
	for _, marker := range []string{"(feat.", "(feat ", "(ft.", "(ft "} {
		if idx := strings.Index(s, marker); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func stripRemasterSuffix(s string) string {
	for _, suffix := range remasterSuffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	return s
}

// stripTrailingYear removes a trailing "- 1999" / "(1999)" release-year
// marker some platforms append to titles.
func stripTrailingYear(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return s
	}
	tail := s[len(s)-6:]
	digits := strings.Trim(tail, "()- ")
	if len(digits) == 4 && isAllDigits(digits) {
		return strings.TrimSpace(s[:len(s)-6])
	}
	return s
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastWasSpace := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastWasSpace = false
		} else if unicode.IsSpace(r) || r == '-' || r == '_' {
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
