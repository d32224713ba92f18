// Package keyword implements the text matching used by reply rules: script- and
// width-insensitive folding of Japanese and Latin text, and keyword set matching.
package keyword

import (
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Folds text for matching: fullwidth ASCII and halfwidth katakana are mapped to their
// canonical widths, the result is NFC-composed and lower-cased, and katakana is mapped to
// hiragana. Dakuten and handakuten are preserved.
func Fold(text string) string {
	// transformers hold state, so build a fresh chain per call
	t := transform.Chain(width.Fold, norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		out = text
	}
	return strings.Map(katakanaToHiragana, strings.ToLower(out))
}

func katakanaToHiragana(r rune) rune {
	// ァ (U+30A1) through ヶ (U+30F6) sit exactly 0x60 above their hiragana
	if r >= 0x30A1 && r <= 0x30F6 {
		return r - 0x60
	}
	return r
}

// "RT @user" quoting marker, as a standalone word ("ART @x" or "SHIRT" do not count).
var retweetMarker = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])RT ?@`)

func HasRetweetMarker(text string) bool {
	return retweetMarker.MatchString(text)
}

// Reports whether a message is addressed to the given handle: the text mentions "@handle"
// and carries no retweet marker.
func IsDirected(text, handle string) bool {
	if handle == "" {
		return false
	}
	if HasRetweetMarker(text) {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(handle))
}

// Reports whether text contains any of the patterns, after folding both.
func ContainsAny(text string, patterns ...string) bool {
	folded := Fold(text)
	for _, p := range patterns {
		if p != "" && strings.Contains(folded, Fold(p)) {
			return true
		}
	}
	return false
}

// Matches text against a fixed keyword set. Safe for concurrent use.
type Matcher struct {
	keywords []string
}

func NewMatcher(keywords []string) *Matcher {
	m := &Matcher{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		m.keywords = append(m.keywords, Fold(kw))
	}
	return m
}

// Returns the first (folded) keyword found in text, or the empty string.
func (m *Matcher) Find(text string) string {
	folded := Fold(text)
	for _, kw := range m.keywords {
		if strings.Contains(folded, kw) {
			return kw
		}
	}
	return ""
}

func (m *Matcher) Match(text string) bool {
	return m.Find(text) != ""
}

func (m *Matcher) Len() int {
	return len(m.keywords)
}
