package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  string
	}{
		{text: "キュピコン", out: "きゅぴこん"},
		{text: "ｷｭﾋﾟｺﾝ", out: "きゅぴこん"},
		{text: "ＫＹＵＰＩＫＯＮ", out: "kyupikon"},
		{text: "KyuPikon", out: "kyupikon"},
		{text: "白井ななみ", out: "白井ななみ"},
		{text: "", out: ""},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, Fold(fix.text), fix.text)
	}
}

func TestIsDirected(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsDirected("@kyupikon_bot フォローして", "kyupikon_bot"))
	assert.True(IsDirected("@Kyupikon_Bot こんにちは", "kyupikon_bot"))
	assert.False(IsDirected("RT @kyupikon_bot: きゅぴこん", "kyupikon_bot"))
	assert.False(IsDirected("きゅぴこん", "kyupikon_bot"))
	assert.False(IsDirected("@someone else", ""))
	assert.False(IsDirected("いいね RT @kyupikon_bot: きゅぴこん", "kyupikon_bot"))
	assert.True(IsDirected("@kyupikon_bot このSHIRTにサインして", "kyupikon_bot"))
	assert.True(IsDirected("ART @kyupikon_bot みて", "kyupikon_bot"))
	assert.True(IsDirected("@kyupikon_bot RTしてね", "kyupikon_bot"))
}

func TestHasRetweetMarker(t *testing.T) {
	assert := assert.New(t)

	assert.True(HasRetweetMarker("RT @alice: hello"))
	assert.True(HasRetweetMarker("すごい RT@alice hello"))
	assert.False(HasRetweetMarker("ART @alice"))
	assert.False(HasRetweetMarker("SHIRT"))
	assert.False(HasRetweetMarker("RTしてね"))
}

func TestContainsAny(t *testing.T) {
	assert := assert.New(t)

	assert.True(ContainsAny("@bot ありがとう！", "ありがとう", "すき"))
	assert.True(ContainsAny("@bot カワイイ", "かわいい"))
	assert.False(ContainsAny("@bot こんにちは", "ありがとう", ""))
}

func TestMatcher(t *testing.T) {
	assert := assert.New(t)

	m := NewMatcher([]string{"きゅぴこん", "ななみちゃん", " ", "kyupikon"})
	assert.Equal(3, m.Len())

	assert.True(m.Match("今日もキュピコン"))
	assert.True(m.Match("KYUPIKON!"))
	assert.Equal("ななみちゃん", m.Find("ななみちゃんおはよう"))
	assert.False(m.Match("おはよう"))
}
