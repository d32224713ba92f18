package rules

// Message patterns, matched against folded text.
const (
	patternUnfollow        = "フォロー解除"
	patternFollow          = "フォロー"
	patternDenyFavorite    = "いいねしないで"
	patternAllowFavorite   = "いいねして"
	patternAllowAllReplies = "ぜんぶきゅぴこんして"
	patternStopAllReplies  = "ぜんぶきゅぴこんしないで"
	patternSign            = "サインして"
)

var (
	patternsDelete    = []string{"削除して", "消して"}
	patternsGratitude = []string{"ありがとう", "ありがと", "かわいい", "可愛い", "すき", "好き", "大好き"}
)

// Canned reply texts.
const (
	textUnfollowed      = "今までありがとう♥ またね、ばいばい。"
	textFollowed        = "よろしくね♥"
	textDenyFavorite    = "わかったきゅぴこん。ごめんね…(._.)"
	textAllowFavorite   = "わかったきゅぴこん！"
	textAllowAllReplies = "きゅっぴこ〜ん♥♥♥"
	textStopAllReplies  = "わかったきゅぴこん♪"
	textDeleted         = "消したきゅぴこん！"
	textCannotDelete    = "このツイートは消せないきゅぴこん… >_<"
	textDeleteFailed    = "うまく消せなかったきゅぴこん… >_< 少し経ってから、もう一度試してみてねきゅぴこん♪"
	textNotAnImage      = "画像にしてほしいきゅぴこん… >_<"
	textNothingToSign   = "サインするものがないきゅぴこん… >_<"
	textCannotSign      = "いまはサインできないきゅぴこん… >_<"
	textSignRetry       = "うまくサインできなかったきゅぴこん… >_< 少し経ってから、もう一度試してみてねきゅぴこん♪"
	textThanks          = "えへへ、ありがとうきゅぴこん♥"

	textFollowThanksFollowing = "フォローしてくれてありがとうキュピコン♪ フォロー解除してほしい時は、ななみに「フォロー解除」って言ってね♥"
	textFollowThanks          = "フォローしてくれてありがとうキュピコン♪ ななみにフォローしてほしい時には、「フォロー」って言ってね♥ 「フォロー解除」って言うと、フォローを解除するよ。"
)
