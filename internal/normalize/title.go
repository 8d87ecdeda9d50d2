package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase upper-cases the first letter of every run of letters and lower-cases the rest,
// so "strength_training" becomes "Strength_Training" and "5k run" becomes "5K Run".
func TitleCase(s string) string {
	caser := cases.Title(language.Und)

	var b strings.Builder
	b.Grow(len(s))

	runStart := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			b.WriteString(caser.String(s[runStart:i]))
			runStart = -1
		}
		b.WriteRune(r)
	}
	if runStart >= 0 {
		b.WriteString(caser.String(s[runStart:]))
	}
	return b.String()
}
