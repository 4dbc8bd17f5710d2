package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fwojciec/minisearch"
)

// ellipsis marks text cut from either side of a snippet.
const ellipsis = "…"

// spaces are the word separators snippet edges snap to.
const spaces = " \n\t\r"

// MakeSnippet returns a fragment of text of about length bytes centered on
// the densest cluster of query terms, with the matched words highlighted.
// The densest window holds the most distinct terms, then the most matches,
// then comes first. Without matches the fragment is the leading text.
func MakeSnippet(text string, terms []string, length int) minisearch.Snippet {
	if length <= 0 {
		length = minisearch.DefaultSnippetLength
	}

	want := make(map[string]bool, len(terms))
	for _, t := range terms {
		want[t] = true
	}

	var matches []minisearch.Token
	if len(want) > 0 {
		for _, tok := range minisearch.Analyze(text) {
			if want[tok.Term] {
				matches = append(matches, tok)
			}
		}
	}

	if len(matches) == 0 {
		return leadingSnippet(text, length)
	}

	first, last := densestWindow(matches, length)
	winStart, winEnd := matches[first].Start, matches[last].End

	start, end := expand(text, winStart, winEnd, length)
	return build(text, start, end, matches[first:last+1])
}

// densestWindow returns the index range of matches that fits in length
// bytes and covers the most distinct terms.
func densestWindow(matches []minisearch.Token, length int) (int, int) {
	counts := make(map[string]int)
	bestFirst, bestLast := 0, 0
	bestDistinct, bestCount := 0, 0

	first := 0
	for last, m := range matches {
		counts[m.Term]++
		for matches[last].End-matches[first].Start > length && first < last {
			t := matches[first].Term
			counts[t]--
			if counts[t] == 0 {
				delete(counts, t)
			}
			first++
		}
		distinct, count := len(counts), last-first+1
		if distinct > bestDistinct || (distinct == bestDistinct && count > bestCount) {
			bestFirst, bestLast = first, last
			bestDistinct, bestCount = distinct, count
		}
	}
	return bestFirst, bestLast
}

// expand grows [start, end) to about length bytes around its center and
// moves both edges to word boundaries outside the original range.
func expand(text string, start, end, length int) (int, int) {
	if extra := length - (end - start); extra > 0 {
		before := extra / 2
		after := extra - before
		if start-before < 0 {
			after += before - start
			before = start
		}
		if end+after > len(text) {
			before += end + after - len(text)
			after = len(text) - end
		}
		before = min(before, start)
		start, end = snapStart(text, start-before, start), snapEnd(text, end+after, end)
	}
	return start, end
}

// snapStart moves pos forward to the start of a word, not past limit.
func snapStart(text string, pos, limit int) int {
	if pos <= 0 {
		return 0
	}
	if isSpace(text[pos-1]) {
		return pos
	}
	if i := strings.IndexAny(text[pos:limit], spaces); i >= 0 {
		return pos + i + 1
	}
	return limit
}

// snapEnd moves pos back to the end of a word, not before limit.
func snapEnd(text string, pos, limit int) int {
	if pos >= len(text) {
		return len(text)
	}
	if isSpace(text[pos]) {
		return pos
	}
	if i := strings.LastIndexAny(text[limit:pos], spaces); i >= 0 {
		return limit + i
	}
	return limit
}

// leadingSnippet returns the first length bytes of text cut at a word boundary.
func leadingSnippet(text string, length int) minisearch.Snippet {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if len(text) <= length {
		return build(text, 0, len(text), nil)
	}
	end := length
	if i := strings.LastIndexAny(text[:end], spaces); i > 0 {
		end = i
	} else {
		for end > 0 && !utf8.RuneStart(text[end]) {
			end--
		}
	}
	return build(text, 0, end, nil)
}

// build cuts text[start:end], flattens line breaks, adds ellipses and
// shifts the highlighted tokens into snippet coordinates.
func build(text string, start, end int, highlight []minisearch.Token) minisearch.Snippet {
	frag := text[start:end]
	trimmed := strings.TrimLeftFunc(frag, unicode.IsSpace)
	start += len(frag) - len(trimmed)
	frag = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	end = start + len(frag)

	var b strings.Builder
	offset := -start
	if strings.TrimSpace(text[:start]) != "" {
		b.WriteString(ellipsis)
		offset += len(ellipsis)
	}
	b.WriteString(flatten(frag))
	if end < len(strings.TrimRightFunc(text, unicode.IsSpace)) {
		b.WriteString(ellipsis)
	}

	var ranges []minisearch.Range
	for _, tok := range highlight {
		if tok.Start < start || tok.End > end {
			continue
		}
		ranges = append(ranges, minisearch.Range{Start: tok.Start + offset, End: tok.End + offset})
	}

	return minisearch.Snippet{Text: b.String(), Highlights: ranges}
}

// flatten replaces ASCII line breaks and tabs with spaces, keeping byte offsets.
func flatten(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
}

func isSpace(b byte) bool {
	return strings.IndexByte(spaces, b) >= 0
}
