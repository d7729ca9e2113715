package news

import (
	"regexp"
	"strings"

	"github.com/Semior001/pulse/app/store"
	"github.com/samber/lo"
)

// Clean trims the query and replaces invalid UTF-8 sequences
// with the replacement character.
func Clean(query string) string {
	return strings.TrimSpace(strings.ToValidUTF8(query, "\uFFFD"))
}

// Normalize cleans and case-folds the query.
func Normalize(query string) string {
	return strings.ToLower(Clean(query))
}

// Filter returns articles matching the query, in their original order.
// Blank query matches everything. The input slice is never modified.
// Matching uses the same case folding as highlighting, so every
// returned article has at least one highlighted segment.
func Filter(articles []store.Article, query string) []store.Article {
	h := NewHighlighter(query)
	if h.re == nil {
		return articles
	}

	return lo.Filter(articles, func(a store.Article, _ int) bool { return h.Matches(a) })
}

// Segment is a part of a highlighted text.
type Segment struct {
	Text  string
	Match bool
}

// Highlighter splits texts into segments, marking every occurrence
// of the query.
type Highlighter struct {
	re *regexp.Regexp
}

// NewHighlighter makes a case-insensitive highlighter for the literal query.
func NewHighlighter(query string) Highlighter {
	q := Clean(query)
	if q == "" {
		return Highlighter{}
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(q))
	if err != nil {
		return Highlighter{re: noMatch}
	}
	return Highlighter{re: re}
}

// noMatch never matches, used when the query cannot be compiled.
var noMatch = regexp.MustCompile(`[^\x00-\x{10FFFF}]`)

// Matches reports whether the query is found in the article's
// title, description or source name.
func (h Highlighter) Matches(a store.Article) bool {
	if h.re == nil {
		return true
	}
	return h.re.MatchString(a.Title) || h.re.MatchString(a.Description) || h.re.MatchString(a.SourceName)
}

// Segments returns the text split by non-overlapping query occurrences.
func (h Highlighter) Segments(text string) []Segment {
	if text == "" {
		return nil
	}
	if h.re == nil {
		return []Segment{{Text: text}}
	}

	var res []Segment
	last := 0
	for _, loc := range h.re.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			res = append(res, Segment{Text: text[last:loc[0]]})
		}
		res = append(res, Segment{Text: text[loc[0]:loc[1]], Match: true})
		last = loc[1]
	}
	if last < len(text) {
		res = append(res, Segment{Text: text[last:]})
	}

	return res
}

// Highlight is a shortcut for NewHighlighter(query).Segments(text).
func Highlight(text, query string) []Segment {
	return NewHighlighter(query).Segments(text)
}
