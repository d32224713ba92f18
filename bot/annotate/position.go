package annotate

import (
	"strings"

	"github.com/bluesky-social/kyupikon/bot/keyword"
)

// One of nine placement anchors within an image.
type Anchor int

const (
	AnchorTopLeft Anchor = iota
	AnchorTop
	AnchorTopRight
	AnchorLeft
	AnchorCenter
	AnchorRight
	AnchorBottomLeft
	AnchorBottom
	AnchorBottomRight
)

const DefaultAnchor = AnchorBottomLeft

func (a Anchor) String() string {
	switch a {
	case AnchorTopLeft:
		return "top-left"
	case AnchorTop:
		return "top"
	case AnchorTopRight:
		return "top-right"
	case AnchorLeft:
		return "left"
	case AnchorCenter:
		return "center"
	case AnchorRight:
		return "right"
	case AnchorBottomLeft:
		return "bottom-left"
	case AnchorBottom:
		return "bottom"
	case AnchorBottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}

// alignment along one axis
type align int

const (
	alignStart align = iota
	alignCenter
	alignEnd
)

func (a Anchor) axes() (horizontal, vertical align) {
	return align(int(a) % 3), align(int(a) / 3)
}

func anchorFromAxes(horizontal, vertical align) Anchor {
	return Anchor(int(vertical)*3 + int(horizontal))
}

var (
	topWords    = []string{"上", "うえ", "top"}
	bottomWords = []string{"下", "した", "bottom"}
	leftWords   = []string{"左", "ひだり", "left"}
	rightWords  = []string{"右", "みぎ", "right"}
	centerWords = []string{"真ん中", "まんなか", "中央", "center", "middle"}
)

// Everyday words containing a one-character hint that say nothing about placement. They are
// blanked out before hints are matched ("下さい" is not "bottom", "ました" holds "した").
var nonPositional = []string{
	"下さい", "上手", "下手", "以上", "以下", "上げ", "上が", "下げ", "下が",
	"ました", "でした",
}

func stripNonPositional(folded string) string {
	for _, w := range nonPositional {
		folded = strings.ReplaceAll(folded, w, " ")
	}
	return folded
}

func containsAny(folded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(folded, w) {
			return true
		}
	}
	return false
}

// Resolves free text like "右上に" into a placement anchor. A vertical hint (top/bottom) and
// a horizontal hint (left/right) combine; an axis with no hint is centered when a center
// keyword is present. Text with no hint at all yields DefaultAnchor.
func ParsePosition(text string) Anchor {
	folded := stripNonPositional(keyword.Fold(text))

	top := containsAny(folded, topWords)
	bottom := containsAny(folded, bottomWords)
	left := containsAny(folded, leftWords)
	right := containsAny(folded, rightWords)
	center := containsAny(folded, centerWords)

	hasV := top != bottom
	hasH := left != right
	if !hasV && !hasH && !center {
		return DefaultAnchor
	}

	v, h := alignCenter, alignCenter
	if hasV {
		v = alignEnd
		if top {
			v = alignStart
		}
	}
	if hasH {
		h = alignEnd
		if left {
			h = alignStart
		}
	}
	return anchorFromAxes(h, v)
}
