// Package html implements minisearch.Extractor as a single streaming pass
// over the golang.org/x/net/html tokenizer.
package html

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/fwojciec/minisearch"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMaxTokenSize bounds the bytes buffered for a single token.
const DefaultMaxTokenSize = 1 << 20

// Ensure Extractor implements minisearch.Extractor at compile time.
var _ minisearch.Extractor = (*Extractor)(nil)

// tagPattern matches tag-like ranges in markup the tokenizer gave up on,
// including one left open at the end of input.
var tagPattern = regexp.MustCompile(`<[^>]*(>|$)`)

// skipped elements never contribute text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Math:     true,
}

// pClosers are the start tags that end an open paragraph.
var pClosers = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Details: true, atom.Div: true, atom.Dl: true, atom.Fieldset: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hgroup: true, atom.Hr: true, atom.Main: true, atom.Menu: true,
	atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true,
	atom.Table: true, atom.Ul: true,
}

var cellClosers = map[atom.Atom]bool{
	atom.Td: true, atom.Th: true, atom.Tr: true,
	atom.Tbody: true, atom.Thead: true, atom.Tfoot: true,
}

var rowClosers = map[atom.Atom]bool{
	atom.Tr: true, atom.Tbody: true, atom.Thead: true, atom.Tfoot: true,
}

// impliedEnd maps elements whose end tag may be omitted to the sibling
// start tags that close them.
var impliedEnd = map[atom.Atom]map[atom.Atom]bool{
	atom.P:        pClosers,
	atom.Li:       {atom.Li: true},
	atom.Dt:       {atom.Dt: true, atom.Dd: true},
	atom.Dd:       {atom.Dt: true, atom.Dd: true},
	atom.Option:   {atom.Option: true, atom.Optgroup: true},
	atom.Optgroup: {atom.Optgroup: true},
	atom.Tr:       rowClosers,
	atom.Td:       cellClosers,
	atom.Th:       cellClosers,
}

// headContent may appear inside head. Any other start tag implies the
// body has begun.
var headContent = map[atom.Atom]bool{
	atom.Html: true, atom.Head: true, atom.Title: true, atom.Meta: true,
	atom.Link: true, atom.Base: true, atom.Style: true, atom.Script: true,
	atom.Noscript: true, atom.Template: true,
}

// blocks start and end on their own line.
var blocks = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Caption: true, atom.Dd: true, atom.Details: true, atom.Dialog: true,
	atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Fieldset: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hgroup: true, atom.Hr: true, atom.Li: true, atom.Main: true,
	atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true,
	atom.Summary: true, atom.Table: true, atom.Tbody: true, atom.Thead: true,
	atom.Tfoot: true, atom.Tr: true, atom.Ul: true, atom.Body: true, atom.Html: true,
}

// voids never have an end tag.
var voids = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true, atom.Embed: true,
	atom.Hr: true, atom.Img: true, atom.Input: true, atom.Link: true, atom.Meta: true,
	atom.Param: true, atom.Source: true, atom.Track: true, atom.Wbr: true,
}

// Extractor converts HTML into title and visible plain text.
type Extractor struct {
	// MaxTokenSize bounds a single token. Input past an oversized token is
	// recovered as literal text. Zero means DefaultMaxTokenSize.
	MaxTokenSize int
}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{MaxTokenSize: DefaultMaxTokenSize}
}

// Extract strips markup and returns the page title and text.
func (e *Extractor) Extract(raw []byte) (*minisearch.ExtractResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, minisearch.Errorf(minisearch.EINVALID, "empty document")
	}

	maxBuf := e.MaxTokenSize
	if maxBuf <= 0 {
		maxBuf = DefaultMaxTokenSize
	}

	z := html.NewTokenizer(bytes.NewReader(raw))
	z.SetMaxBuf(maxBuf)

	var (
		text     textBuilder
		title    textBuilder
		consumed int
		inTitle  bool
		inHead   bool
		preDepth int

		// Suppressed subtree. For most elements skipDepth counts open
		// same-named tags. For elements with an optional end tag it counts
		// open elements, and a closing sibling or ancestor ends suppression.
		skipName  string
		skipAtom  atom.Atom
		skipDepth int
		skipInner []atom.Atom // optional-end elements opened while suppressed
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) && skipDepth == 0 {
				recoverText(&text, raw[consumed:])
			}
			break
		}
		consumed += len(z.Raw())

		switch tt {
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if inTitle {
				title.text(string(z.Text()))
				continue
			}
			if inHead {
				continue
			}
			if preDepth > 0 {
				text.raw(string(z.Text()))
				continue
			}
			text.text(string(z.Text()))

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			selfClosing := tt == html.SelfClosingTagToken || voids[a]

			if skipDepth > 0 {
				closers := impliedEnd[skipAtom]
				switch {
				case closers == nil:
					if !selfClosing && string(name) == skipName {
						skipDepth++
					}
					continue
				case skipDepth == 1 && closers[a]:
					skipDepth = 0
				case selfClosing:
					continue
				case impliedEnd[a] != nil:
					if !slices.Contains(skipInner, a) {
						skipInner = append(skipInner, a)
					}
					continue
				default:
					skipDepth++
					continue
				}
			}
			if !selfClosing && (skipped[a] || (hasAttr && isHidden(z))) {
				skipName = string(name)
				skipAtom = a
				skipDepth = 1
				skipInner = skipInner[:0]
				continue
			}

			if inHead && !headContent[a] {
				inHead = false
			}

			switch {
			case a == atom.Head && !selfClosing:
				inHead = true
			case a == atom.Title && !selfClosing:
				inTitle = true
			case a == atom.Br:
				text.breakLine()
			case a == atom.Td || a == atom.Th:
				text.separate()
			case blocks[a]:
				text.breakLine()
				if a == atom.Pre && !selfClosing {
					preDepth++
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)

			if skipDepth > 0 {
				closers := impliedEnd[skipAtom]
				switch {
				case closers == nil:
					if string(name) == skipName {
						skipDepth--
					}
					continue
				case skipDepth > 1:
					if impliedEnd[a] == nil {
						skipDepth--
					}
					continue
				case a == skipAtom:
					skipDepth = 0
					continue
				case slices.Contains(skipInner, a):
					continue
				default:
					// An enclosing element closed the hidden one.
					skipDepth = 0
				}
			}

			switch {
			case a == atom.Head:
				inHead = false
			case a == atom.Title:
				inTitle = false
			case a == atom.Td || a == atom.Th:
				text.separate()
			case blocks[a]:
				text.breakLine()
				if a == atom.Pre && preDepth > 0 {
					preDepth--
				}
			}
		}
	}

	return &minisearch.ExtractResult{
		Title: title.String(),
		Text:  text.String(),
	}, nil
}

// isHidden reports whether the current start tag hides its subtree.
func isHidden(z *html.Tokenizer) bool {
	hidden := false
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "hidden":
			hidden = true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(string(val)), "true") {
				hidden = true
			}
		case "style":
			style := strings.ToLower(strings.Join(strings.Fields(string(val)), ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				hidden = true
			}
		}
		if !more {
			return hidden
		}
	}
}

// recoverText appends markup the tokenizer could not handle as literal text.
func recoverText(t *textBuilder, rest []byte) {
	s := tagPattern.ReplaceAllString(string(rest), " ")
	t.text(html.UnescapeString(s))
}

// textBuilder accumulates collapsed text. Separators are written lazily so
// runs of block boundaries and whitespace produce a single break.
type textBuilder struct {
	b       strings.Builder
	space   bool
	newline bool
}

func (t *textBuilder) flush() {
	if t.b.Len() == 0 {
		t.space, t.newline = false, false
		return
	}
	s := t.b.String()
	last := s[len(s)-1]
	switch {
	case t.newline && last != '\n':
		t.b.WriteByte('\n')
	case t.space && last != '\n' && last != ' ':
		t.b.WriteByte(' ')
	}
	t.space, t.newline = false, false
}

// text writes s with whitespace runs collapsed to single spaces.
func (t *textBuilder) text(s string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" {
			t.space = true
		}
		return
	}
	if isSpace(s[0]) {
		t.space = true
	}
	for i, f := range fields {
		if i > 0 {
			t.space = true
		}
		t.flush()
		t.b.WriteString(f)
	}
	if isSpace(s[len(s)-1]) {
		t.space = true
	}
}

// raw writes preformatted text keeping its line breaks.
func (t *textBuilder) raw(s string) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if strings.TrimSpace(s) == "" {
		if strings.Contains(s, "\n") {
			t.newline = true
		}
		return
	}
	t.flush()
	t.b.WriteString(strings.TrimLeft(s, "\n"))
}

func (t *textBuilder) breakLine() { t.newline = true }

func (t *textBuilder) separate() { t.space = true }

func (t *textBuilder) String() string {
	return strings.TrimSpace(t.b.String())
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
