package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripper = bluemonday.StrictPolicy()
	// the HTML tokenizer rewrites these in text; apply the same before comparing
	tokenizerNormal = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\x00", "\uFFFD")
)

// ContainsMarkup reports whether input carries HTML elements or comments.
// Plain text with bare '&' or '<' characters is not markup.
func ContainsMarkup(input string) bool {
	input = tokenizerNormal.Replace(input)
	return html.UnescapeString(stripper.Sanitize(input)) != html.UnescapeString(input)
}
