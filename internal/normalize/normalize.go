// Package normalize cleans work-item descriptions and splits them into search tokens.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// PrefixLength is the number of leading runes used as an inverted index key.
const PrefixLength = 4

// MinTokenLength is the shortest token kept by Tokenize, in runes.
const MinTokenLength = 3

var (
	// "viz výkres D.1.2", "dle výkresu č. 5", "v.č. 12", "výkr. A-101"
	drawingRefPattern = regexp.MustCompile(`(?i)(?:(?:viz|dle|podle)\s+)?(?:výkres[a-zěščřžýáíéůúň]*|výkr\.|v\.\s?č\.)\s*(?:č\.\s*)?[a-z0-9][a-z0-9./_-]*`)

	// Leading phase or object codes: "SO 01 - ", "PS-02:", "D.1.1 ", "01.02.03 ", "3) "
	phasePrefixPattern  = regexp.MustCompile(`(?i)^\s*(?:(?:SO|PS|IO|D)[\s.-]*\d+(?:[.-]\d+)*\s*[-–:.]?\s*)+`)
	numberPrefixPattern = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)+\.?|\d+\s*[).:-])\s+`)

	// "15%", "+ 10 %", "(ztratné 5,5 %)"
	percentPattern      = regexp.MustCompile(`[+-]?\s*\d+(?:[.,]\d+)?\s*%`)
	percentParenPattern = regexp.MustCompile(`\([^()]*\d+(?:[.,]\d+)?\s*%[^()]*\)`)
	emptyParenPattern   = regexp.MustCompile(`\(\s*\)`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// stopwords are dropped from token lists; they carry no catalog meaning.
var stopwords = map[string]struct{}{
	"pro": {}, "při": {}, "pod": {}, "nad": {}, "bez": {}, "nebo": {},
	"jako": {}, "který": {}, "která": {}, "které": {}, "dle": {}, "viz": {},
	"vč.": {}, "včetně": {}, "apod": {}, "the": {}, "and": {}, "for": {}, "with": {},
}

// maxPasses bounds the cleanup loop in Query.
const maxPasses = 8

// Query normalizes a raw description for matching and for use as a cache key.
// Drawing references, phase or section code prefixes and percentage annotations
// are removed, the text is lowercased, NFC-composed and whitespace collapsed.
// Cleanup repeats until the text stops changing, so Query(Query(s)) == Query(s).
func Query(text string) string {
	out := text
	for i := 0; i < maxPasses; i++ {
		next := clean(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func clean(text string) string {
	out := norm.NFC.String(text)
	out = strings.ToLower(out)
	out = drawingRefPattern.ReplaceAllString(out, " ")
	out = phasePrefixPattern.ReplaceAllString(out, "")
	out = numberPrefixPattern.ReplaceAllString(out, "")
	out = percentParenPattern.ReplaceAllString(out, " ")
	out = percentPattern.ReplaceAllString(out, " ")
	out = emptyParenPattern.ReplaceAllString(out, " ")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.Trim(out, " ,;-–")
}

// Tokenize lowercases text and splits it on whitespace and punctuation.
// Tokens of fewer than MinTokenLength runes and stopwords are dropped.
func Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	runes := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		word := current.String()
		current.Reset()
		if runes >= MinTokenLength && !IsStopword(word) {
			tokens = append(tokens, word)
		}
		runes = 0
	}

	for _, r := range norm.NFC.String(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
			runes++
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// Words splits text on whitespace only, keeping punctuation inside words.
// It is used to recognize literal catalog codes such as "c25/30".
func Words(text string) []string {
	return strings.Fields(strings.ToLower(norm.NFC.String(text)))
}

// Prefix returns the inverted index key of a token.
func Prefix(token string) string {
	n := 0
	for i := range token {
		if n == PrefixLength {
			return token[:i]
		}
		n++
	}
	return token
}

// IsStopword reports whether the lowercased word is ignored during matching.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}
