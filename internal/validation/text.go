// Package validation holds input checks shared by services and handlers.
package validation

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// StripTags returns the visible text of an HTML fragment with whitespace
// collapsed. Script and style bodies are dropped.
func StripTags(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var buf bytes.Buffer
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way keep what was read.
			return strings.TrimSpace(whitespaceRegex.ReplaceAllString(buf.String(), " "))
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				buf.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			buf.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				buf.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				buf.Write(z.Text())
			}
		}
	}
}

// Excerpt returns at most n runes of s, cut on a rune boundary.
func Excerpt(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
