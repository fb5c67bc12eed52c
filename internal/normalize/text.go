// Package normalize turns the text, dates, URLs and case numbers returned by
// upstream gazettes into the canonical forms stored by the monitor.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Default caps applied when a source adapter is not configured otherwise
const (
	DefaultMaxContent = 5000
	DefaultMaxTitle   = 300
)

// SanitizeText strips markup, drops unsupported characters, collapses
// whitespace and truncates the result to max runes.
func SanitizeText(s string, max int) string {
	if s == "" || max <= 0 {
		return ""
	}

	text := stripMarkup(s)

	text = strings.Map(func(r rune) rune {
		switch {
		case r == '<' || r == '>':
			// decoded entities must not reintroduce tags
			return ' '
		case unicode.IsSpace(r):
			return ' '
		case r == utf8.RuneError:
			return -1
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, text)

	text = strings.Join(strings.Fields(text), " ")

	return Truncate(text, max)
}

// Truncate cuts s to at most max runes
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// stripMarkup returns the text content of an HTML fragment with entities decoded
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way the text so far is all we get
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextElement(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextElement(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func isRawTextElement(name string) bool {
	return name == "script" || name == "style"
}
