// Package normalizer folds numeric literals into a single sentinel token and
// breaks normalized text into the lower-cased words and n-gram shingles that
// the index stores. Build and query time share this package so both sides
// see the same vocabulary.
package normalizer

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Sentinel replaces every numeric literal that is not a small count or a
// calendar year.
const Sentinel = "NUMERICVALUE"

// MaxNGram is the longest shingle written to the index and the longest
// phrase Term accepts.
const MaxNGram = 3

var stripChars = strings.NewReplacer(",", "", "$", "", "€", "", "£", "")

// Normalize replaces numeric tokens in line with Sentinel. Tokens are split
// on whitespace and rejoined with single spaces; nothing else is changed.
func Normalize(line string) string {
	words := strings.Fields(line)
	for i, word := range words {
		if foldable(word) {
			words[i] = Sentinel
		}
	}
	return strings.Join(words, " ")
}

func foldable(token string) bool {
	value, ok := parseNumber(stripChars.Replace(token))
	if !ok {
		return false
	}
	if value == math.Trunc(value) {
		if value >= 0 && value < 5 {
			return false
		}
		if value >= 1900 && value <= 2100 {
			return false
		}
	}
	return true
}

// parseNumber accepts plain decimal literals only. ParseFloat alone would
// also take "inf", "nan", hex floats and digit separators.
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return 0, false
		}
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Analyze lower-cases text and splits it on anything that is not a letter or
// a digit.
func Analyze(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Shingles returns every contiguous run of 1 to maxN words joined by a
// single space, shortest first for each start position.
func Shingles(words []string, maxN int) []string {
	if maxN <= 0 {
		maxN = 1
	}
	grams := make([]string, 0, len(words)*maxN)
	for i := range words {
		for n := 1; n <= maxN && i+n <= len(words); n++ {
			grams = append(grams, strings.Join(words[i:i+n], " "))
		}
	}
	return grams
}

// Term turns a query term into the gram it has to match in the index. It
// returns false when the term has no words or more words than the index
// shingles.
func Term(raw string) (string, bool) {
	words := Analyze(Normalize(raw))
	if len(words) == 0 || len(words) > MaxNGram {
		return "", false
	}
	return strings.Join(words, " "), true
}
