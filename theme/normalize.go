/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package theme

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const hintMask = '•'

// Normalize folds case, strips diacritics and drops everything that is not
// a letter, digit or space, so guesses compare loosely against the theme.
func Normalize(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
		})),
	)

	out, _, err := transform.String(t, cases.Fold().String(s))
	if err != nil {
		return ""
	}

	return strings.Join(strings.Fields(out), " ")
}

// Obfuscate keeps the first rune of every word and masks the rest one for
// one. Words are joined with single spaces.
func Obfuscate(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		rs := []rune(w)
		words[i] = string(rs[0]) + strings.Repeat(string(hintMask), len(rs)-1)
	}
	return strings.Join(words, " ")
}
