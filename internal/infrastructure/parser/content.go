package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	hashtagExpr    = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_&/])#[\p{L}\p{N}_]+`)
	markupExpr     = regexp.MustCompile(`(?i)</?(?:a|b|i|p|br|hr|em|strong|small|mark|sub|sup|span|div|ul|ol|li|h[1-6]|code|pre|blockquote|script|style)\b[^<>]*>`)
	blankLinesExpr = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips HTML markup from generated text, keeping line breaks
// for block elements. Only common formatting tags count as markup, so
// angle brackets in prose such as Vec<T> survive. Text without markup is
// only trimmed.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	tags := markupExpr.FindAllStringIndex(s, -1)
	if len(tags) == 0 {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escapeStrayBrackets(s, tags)))
	if err != nil {
		return s
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	doc.Find("script, style").Remove()

	text := doc.Find("body").Text()
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesExpr.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// escapeStrayBrackets rewrites every '<' outside the given tag spans as an
// entity so the HTML parser keeps it as text.
func escapeStrayBrackets(s string, tags [][]int) string {
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, span := range tags {
		b.WriteString(strings.ReplaceAll(s[last:span[0]], "<", "&lt;"))
		b.WriteString(s[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(strings.ReplaceAll(s[last:], "<", "&lt;"))
	return b.String()
}

// Hashtags returns the hashtags found in text, in order of appearance.
func Hashtags(text string) []string {
	matches := hashtagExpr.FindAllString(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		idx := strings.IndexByte(m, '#')
		tags = append(tags, m[idx:])
	}
	return tags
}

// abbreviations end in a period without ending the sentence.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "jr": {}, "sr": {},
	"st": {}, "mt": {}, "ft": {}, "ave": {}, "vs": {}, "inc": {}, "ltd": {}, "co": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {},
	"sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// FirstSentence returns text up to and including the first sentence terminator.
// A period after an abbreviation, an initial or an initialism does not end the
// sentence, nor does one followed by a lowercase word.
func FirstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + 1
		if next < len(text) && text[next] != ' ' && text[next] != '\n' {
			continue
		}
		if r == '.' && !endsSentence(text[:i], text[next:]) {
			continue
		}
		return strings.TrimSpace(text[:next])
	}
	return text
}

func endsSentence(before, after string) bool {
	word := before[strings.LastIndexAny(before, " \n(\"'")+1:]
	if _, ok := abbreviations[strings.ToLower(word)]; ok {
		return false
	}
	if strings.Contains(word, ".") {
		return false
	}
	if r, size := utf8.DecodeRuneInString(word); size == len(word) && unicode.IsLetter(r) {
		return false
	}

	after = strings.TrimLeft(after, " \n")
	if after == "" {
		return true
	}
	first, _ := utf8.DecodeRuneInString(after)
	return !unicode.IsLower(first)
}
