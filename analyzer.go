package minisearch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

// stopWords are dropped from both indexed text and queries.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "they": true, "have": true,
	"had": true, "what": true, "when": true, "where": true, "who": true, "which": true,
	"why": true, "how": true, "all": true, "any": true, "both": true, "each": true,
	"few": true, "more": true, "most": true, "other": true, "some": true, "such": true,
	"no": true, "nor": true, "not": true, "only": true, "own": true, "same": true,
	"so": true, "than": true, "too": true, "very": true, "can": true, "did": true,
	"do": true, "does": true, "doing": true, "done": true, "i": true, "or": true,
	"if": true, "into": true, "there": true, "their": true, "then": true, "these": true,
	"those": true, "we": true, "you": true, "your": true, "me": true, "my": true,
}

// maxTermLength bounds indexed words; longer runs are usually encoded data.
const maxTermLength = 64

// Token is an analyzed term and the byte range of the word it came from.
type Token struct {
	Term  string
	Start int
	End   int
}

// Analyze splits text into words on runs of letters and digits, lowercases
// them, drops stop words and reduces each word to its English stem.
// Offsets refer to the original text.
func Analyze(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = appendToken(tokens, text, start, i)
			start = -1
		}
	}
	if start >= 0 {
		tokens = appendToken(tokens, text, start, len(text))
	}
	return tokens
}

func appendToken(tokens []Token, text string, start, end int) []Token {
	word := text[start:end]
	if utf8.RuneCountInString(word) > maxTermLength {
		return tokens
	}
	word = strings.ToLower(word)
	if stopWords[word] {
		return tokens
	}
	return append(tokens, Token{Term: english.Stem(word, false), Start: start, End: end})
}

// Terms returns the distinct analyzed terms of text in first-seen order.
func Terms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range Analyze(text) {
		if seen[tok.Term] {
			continue
		}
		seen[tok.Term] = true
		terms = append(terms, tok.Term)
	}
	return terms
}

// TermStream returns all analyzed terms of text joined by spaces, the form
// stored in the full-text index.
func TermStream(text string) string {
	tokens := Analyze(text)
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Term)
	}
	return b.String()
}
