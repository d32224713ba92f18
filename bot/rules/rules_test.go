package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"strings"
	"testing"

	"github.com/bluesky-social/kyupikon/bot/annotate"
	"github.com/bluesky-social/kyupikon/bot/engine"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/bot/setstore"
	"github.com/bluesky-social/kyupikon/platform"

	"github.com/stretchr/testify/assert"
)

func testEngine() (*engine.Engine, *platform.MockClient) {
	eng, client := engine.EngineTestFixture()
	eng.Rules = DefaultRules()
	return eng, client
}

func directed(id, handle, text string) *platform.Message {
	return engine.TestMessage(id, handle, "@"+engine.TestSelfHandle+" "+text)
}

func TestUnfollowRequestEndToEnd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	assert.NoError(eng.ProcessMessage(ctx, directed("100", "alice", "フォロー解除")))

	assert.Equal([]string{"Unfollow", "PostReply"}, client.Mutations())
	assert.Equal("alice", client.CallsFor("Unfollow")[0].Arg)
	reply := client.CallsFor("PostReply")[0].Input
	assert.Equal(textUnfollowed, reply.Text)
	assert.Equal("alice", reply.ToHandle)
	assert.Equal("100", reply.InReplyToID)
}

func TestDeleteWithoutTargetEndToEnd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	assert.NoError(eng.ProcessMessage(ctx, directed("101", "alice", "消して")))

	assert.Equal([]string{"PostReply"}, client.Mutations())
	assert.Equal(textCannotDelete, client.CallsFor("PostReply")[0].Input.Text)
	assert.Empty(client.CallsFor("DeleteContent"))
}

func TestDeleteRequest(t *testing.T) {
	ctx := context.Background()

	botPost := func(id, replyToUser string) *platform.Message {
		return &platform.Message{
			ID:              id,
			Sender:          platform.Account{ID: "uid-bot", Handle: engine.TestSelfHandle},
			Text:            "@alice きゅぴこん♡",
			InReplyToUserID: replyToUser,
		}
	}

	t.Run("deleted", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		client.Messages["900"] = botPost("900", "uid-alice")

		msg := directed("102", "alice", "削除して")
		msg.InReplyToID = "900"
		assert.NoError(eng.ProcessMessage(ctx, msg))

		assert.Equal([]string{"DeleteContent", "PostReply"}, client.Mutations())
		assert.Equal("900", client.CallsFor("DeleteContent")[0].Arg)
		assert.Equal(textDeleted, client.CallsFor("PostReply")[0].Input.Text)
	})

	t.Run("not addressed to requester", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		client.Messages["901"] = botPost("901", "uid-bob")

		msg := directed("103", "alice", "消して")
		msg.InReplyToID = "901"
		assert.NoError(eng.ProcessMessage(ctx, msg))

		assert.Equal([]string{"PostReply"}, client.Mutations())
		assert.Equal(textCannotDelete, client.CallsFor("PostReply")[0].Input.Text)
	})

	t.Run("not authored by bot", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		client.Messages["902"] = &platform.Message{
			ID:              "902",
			Sender:          platform.Account{ID: "uid-carol", Handle: "carol"},
			InReplyToUserID: "uid-alice",
		}

		msg := directed("104", "alice", "消して")
		msg.InReplyToID = "902"
		assert.NoError(eng.ProcessMessage(ctx, msg))

		assert.Equal([]string{"PostReply"}, client.Mutations())
		assert.Equal(textCannotDelete, client.CallsFor("PostReply")[0].Input.Text)
	})

	t.Run("target missing", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()

		msg := directed("105", "alice", "消して")
		msg.InReplyToID = "gone"
		assert.NoError(eng.ProcessMessage(ctx, msg))

		assert.Equal([]string{"PostReply"}, client.Mutations())
		assert.Equal(textCannotDelete, client.CallsFor("PostReply")[0].Input.Text)
	})

	t.Run("transient failure", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		client.Messages["903"] = botPost("903", "uid-alice")
		client.Errors["DeleteContent"] = &platform.Error{StatusCode: 503}

		msg := directed("106", "alice", "消して")
		msg.InReplyToID = "903"
		assert.NoError(eng.ProcessMessage(ctx, msg))

		// attempted once, not retried
		assert.Equal([]string{"DeleteContent", "PostReply"}, client.Mutations())
		assert.Equal(textDeleteFailed, client.CallsFor("PostReply")[0].Input.Text)
	})
}

func TestRulePriority(t *testing.T) {
	ctx := context.Background()

	fixtures := []struct {
		text string
		rule string
	}{
		{text: "フォロー解除して", rule: "unfollow-request"},
		{text: "フォローして ありがとう", rule: "follow-request"},
		{text: "いいねしないで ありがとう", rule: "deny-favorite"},
		{text: "いいねして ぜんぶきゅぴこんして", rule: "allow-favorite"},
		{text: "ぜんぶきゅぴこんして 消して", rule: "allow-all-replies"},
		{text: "ぜんぶきゅぴこんしないで 好き", rule: "stop-all-replies"},
		{text: "消して サインして", rule: "delete-request"},
		{text: "サインして 大好き", rule: "sign-nothing"},
		{text: "かわいい", rule: "gratitude"},
		{text: "このARTかわいい", rule: "gratitude"},
		{text: "こんにちは", rule: "directed-fallback"},
	}

	for _, fix := range fixtures {
		t.Run(fix.text, func(t *testing.T) {
			assert := assert.New(t)
			eng, client := testEngine()

			msg := directed("200", "alice", fix.text)
			c := engine.NewMessageContext(ctx, eng, *msg)
			rule, err := eng.Rules.CallMessageRules(&c)
			assert.NoError(err)
			assert.Equal(fix.rule, rule)

			assert.NoError(eng.ProcessMessage(ctx, msg))
			// exactly one reply, whichever rule fired
			assert.Len(client.CallsFor("PostReply"), 1)
		})
	}
}

func TestPolicyCommands(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	flag := func(field policystore.Field) bool {
		v, err := policystore.GetFlag(ctx, eng.Policies, "uid-alice", field)
		assert.NoError(err)
		return v
	}

	assert.NoError(eng.ProcessMessage(ctx, directed("1", "alice", "いいねしないで")))
	assert.True(flag(policystore.FieldDenyFavorite))
	assert.NoError(eng.ProcessMessage(ctx, directed("2", "alice", "いいねして")))
	assert.False(flag(policystore.FieldDenyFavorite))

	assert.NoError(eng.ProcessMessage(ctx, directed("3", "alice", "ぜんぶキュピコンして")))
	assert.True(flag(policystore.FieldAllowAllReplies))
	assert.NoError(eng.ProcessMessage(ctx, directed("4", "alice", "ぜんぶきゅぴこんしないで")))
	assert.False(flag(policystore.FieldAllowAllReplies))

	var texts []string
	for _, call := range client.CallsFor("PostReply") {
		texts = append(texts, call.Input.Text)
	}
	assert.Equal([]string{textDenyFavorite, textAllowFavorite, textAllowAllReplies, textStopAllReplies}, texts)
}

func TestReplyCeiling(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()
	eng.Config.ReplyCeiling = 5

	for i := 0; i < 12; i++ {
		assert.NoError(eng.ProcessMessage(ctx, directed("m", "alice", "こんにちは")))
		v, _, err := eng.Policies.Get(ctx, "uid-alice", policystore.FieldReplyCount)
		assert.NoError(err)
		assert.LessOrEqual(v, int64(5))
	}
	assert.Len(client.CallsFor("PostReply"), 5)

	// other users have their own counters
	assert.NoError(eng.ProcessMessage(ctx, directed("n", "bob", "こんにちは")))
	assert.Len(client.CallsFor("PostReply"), 6)

	// bulk reset re-enables replies
	_, err := eng.Policies.ResetField(ctx, policystore.FieldReplyCount)
	assert.NoError(err)
	assert.NoError(eng.ProcessMessage(ctx, directed("o", "alice", "こんにちは")))
	assert.Len(client.CallsFor("PostReply"), 7)
}

func TestFailedReplyStillCounts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	var logs bytes.Buffer
	eng.Logger = slog.New(slog.NewJSONHandler(&logs, nil))
	client.Errors["PostReply"] = &platform.Error{StatusCode: 503}

	assert.NoError(eng.ProcessMessage(ctx, directed("800", "alice", "こんにちは")))

	v, _, err := eng.Policies.Get(ctx, "uid-alice", policystore.FieldReplyCount)
	assert.NoError(err)
	assert.Equal(int64(1), v)

	var line struct {
		Msg           string   `json:"msg"`
		Rule          string   `json:"rule"`
		PolicyUpdates []string `json:"policyUpdates"`
		FailedActions []string `json:"failedActions"`
	}
	found := false
	for _, raw := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if err := json.Unmarshal([]byte(raw), &line); err == nil && line.Msg == "canonical-event-line" {
			found = true
			break
		}
	}
	if assert.True(found) {
		assert.Equal("directed-fallback", line.Rule)
		assert.Equal([]string{"replyCount+1"}, line.PolicyUpdates)
		assert.Equal([]string{"reply"}, line.FailedActions)
	}
}

func TestDenyReply(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	assert.NoError(policystore.SetFlag(ctx, eng.Policies, "uid-alice", policystore.FieldDenyReply, true))
	for i := 0; i < 3; i++ {
		assert.NoError(eng.ProcessMessage(ctx, directed("m", "alice", "こんにちは")))
	}
	assert.Empty(client.Mutations())

	// structured commands are still answered
	assert.NoError(eng.ProcessMessage(ctx, directed("m", "alice", "フォローして")))
	assert.Equal([]string{"Follow", "PostReply"}, client.Mutations())
}

func TestAllowAllReplies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	plain := engine.TestMessage("300", "alice", "今日はいい天気")
	assert.NoError(eng.ProcessMessage(ctx, plain))
	assert.Empty(client.Mutations())

	assert.NoError(policystore.SetFlag(ctx, eng.Policies, "uid-alice", policystore.FieldAllowAllReplies, true))
	assert.NoError(eng.ProcessMessage(ctx, plain))
	assert.Equal([]string{"PostReply"}, client.Mutations())
}

func TestKeywordReplyAndFavorite(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	msg := engine.TestMessage("400", "alice", "今日もキュピコン！")
	assert.NoError(eng.ProcessMessage(ctx, msg))
	assert.Equal([]string{"PostReply", "Favorite"}, client.Mutations())

	// the same message again: replied, but favorited at most once
	assert.NoError(eng.ProcessMessage(ctx, msg))
	assert.Len(client.CallsFor("Favorite"), 1)
	n, err := eng.Sets.Len(ctx, setstore.SetFavorited)
	assert.NoError(err)
	assert.Equal(1, n)

	// retweets are ignored
	rt := engine.TestMessage("401", "alice", "RT @bob: きゅぴこん")
	rt.IsRetweet = true
	client.Reset()
	assert.NoError(eng.ProcessMessage(ctx, rt))
	assert.Empty(client.Mutations())
}

func TestKeywordFavoriteDenied(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	assert.NoError(policystore.SetFlag(ctx, eng.Policies, "uid-alice", policystore.FieldDenyFavorite, true))
	_, err := eng.Sets.Add(ctx, setstore.SetDenyFavorite, "bob")
	assert.NoError(err)

	assert.NoError(eng.ProcessMessage(ctx, engine.TestMessage("500", "alice", "きゅぴこん")))
	assert.NoError(eng.ProcessMessage(ctx, engine.TestMessage("501", "bob", "きゅぴこん")))
	assert.Equal([]string{"PostReply", "PostReply"}, client.Mutations())
}

func TestSelfMessagesIgnored(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()

	msg := directed("600", engine.TestSelfHandle, "フォロー解除 きゅぴこん")
	assert.NoError(eng.ProcessMessage(ctx, msg))
	assert.Empty(client.Calls)
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestSignImage(t *testing.T) {
	ctx := context.Background()

	sig := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			sig.Set(x, y, color.Black)
		}
	}

	t.Run("photo", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		eng.Annotator = &annotate.Annotator{Signature: sig}
		eng.Config.WorkDir = t.TempDir()
		client.MediaFiles["https://media.example.com/abc.png"] = pngBytes(200, 150)

		msg := directed("700", "alice", "右上にサインして")
		msg.Media = []platform.Media{{Type: platform.MediaTypePhoto, URL: "https://media.example.com/abc.png"}}
		assert.NoError(eng.ProcessMessage(ctx, msg))

		assert.Len(client.CallsFor("FetchMedia"), 1)
		replies := client.CallsFor("PostReply")
		if assert.Len(replies, 1) {
			assert.True(strings.HasSuffix(replies[0].Input.MediaPath, "_signed.png"))
			assert.Equal("700", replies[0].Input.InReplyToID)
			assert.NotEmpty(replies[0].Input.Text)
		}
	})

	t.Run("not a photo", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		eng.Annotator = &annotate.Annotator{Signature: sig}

		msg := directed("701", "alice", "サインして")
		msg.Media = []platform.Media{{Type: platform.MediaTypeVideo, URL: "https://media.example.com/v.mp4"}}
		assert.NoError(eng.ProcessMessage(ctx, msg))

		assert.Empty(client.CallsFor("FetchMedia"))
		replies := client.CallsFor("PostReply")
		if assert.Len(replies, 1) {
			assert.Equal(textNotAnImage, replies[0].Input.Text)
		}
	})

	signFailure := func(t *testing.T, setup func(eng *engine.Engine, client *platform.MockClient)) []platform.Call {
		assert := assert.New(t)
		eng, client := testEngine()
		eng.Annotator = &annotate.Annotator{Signature: sig}
		eng.Config.WorkDir = t.TempDir()
		setup(eng, client)

		msg := directed("703", "alice", "サインして")
		msg.Media = []platform.Media{{Type: platform.MediaTypePhoto, URL: "https://media.example.com/abc.png"}}
		assert.NoError(eng.ProcessMessage(ctx, msg))
		return client.CallsFor("PostReply")
	}

	t.Run("size budget unreachable", func(t *testing.T) {
		assert := assert.New(t)
		replies := signFailure(t, func(eng *engine.Engine, client *platform.MockClient) {
			eng.Config.PhotoSizeLimit = 1
			client.MediaFiles["https://media.example.com/abc.png"] = pngBytes(200, 150)
		})
		if assert.Len(replies, 1) {
			assert.Equal(textCannotSign, replies[0].Input.Text)
			assert.Empty(replies[0].Input.MediaPath)
			assert.Equal("703", replies[0].Input.InReplyToID)
		}
	})

	t.Run("media missing", func(t *testing.T) {
		assert := assert.New(t)
		replies := signFailure(t, func(eng *engine.Engine, client *platform.MockClient) {})
		if assert.Len(replies, 1) {
			assert.Equal(textCannotSign, replies[0].Input.Text)
		}
	})

	t.Run("not decodable", func(t *testing.T) {
		assert := assert.New(t)
		replies := signFailure(t, func(eng *engine.Engine, client *platform.MockClient) {
			client.MediaFiles["https://media.example.com/abc.png"] = []byte("not an image")
		})
		if assert.Len(replies, 1) {
			assert.Equal(textCannotSign, replies[0].Input.Text)
		}
	})

	t.Run("transient fetch failure", func(t *testing.T) {
		assert := assert.New(t)
		replies := signFailure(t, func(eng *engine.Engine, client *platform.MockClient) {
			client.Errors["FetchMedia"] = &platform.Error{StatusCode: 503}
		})
		if assert.Len(replies, 1) {
			assert.Equal(textSignRetry, replies[0].Input.Text)
		}
	})

	t.Run("no media", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()

		assert.NoError(eng.ProcessMessage(ctx, directed("702", "alice", "サインして")))
		replies := client.CallsFor("PostReply")
		if assert.Len(replies, 1) {
			assert.Equal(textNothingToSign, replies[0].Input.Text)
		}
	})
}

func TestFollowEvents(t *testing.T) {
	ctx := context.Background()
	bot := platform.Account{ID: "uid-bot", Handle: engine.TestSelfHandle}

	t.Run("protected follower is followed back", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		evt := &platform.FollowEvent{
			Source: platform.Account{ID: "uid-p", Handle: "private_person", Protected: true},
			Target: bot,
		}
		assert.NoError(eng.ProcessFollow(ctx, evt))
		assert.Equal([]string{"Follow", "PostReply"}, client.Mutations())
		assert.Equal(textFollowThanksFollowing, client.CallsFor("PostReply")[0].Input.Text)
	})

	t.Run("public follower is not followed back", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		evt := &platform.FollowEvent{
			Source: platform.Account{ID: "uid-q", Handle: "public_person"},
			Target: bot,
		}
		assert.NoError(eng.ProcessFollow(ctx, evt))
		assert.Equal([]string{"PostReply"}, client.Mutations())
		assert.Equal(textFollowThanks, client.CallsFor("PostReply")[0].Input.Text)
	})

	t.Run("already following", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		evt := &platform.FollowEvent{
			Source:                 platform.Account{ID: "uid-r", Handle: "friend"},
			Target:                 bot,
			SourceFollowedByTarget: true,
		}
		assert.NoError(eng.ProcessFollow(ctx, evt))
		assert.Equal([]string{"PostReply"}, client.Mutations())
		assert.Equal(textFollowThanksFollowing, client.CallsFor("PostReply")[0].Input.Text)
	})

	t.Run("someone else followed", func(t *testing.T) {
		assert := assert.New(t)
		eng, client := testEngine()
		evt := &platform.FollowEvent{
			Source: bot,
			Target: platform.Account{ID: "uid-s", Handle: "someone", Protected: true},
		}
		assert.NoError(eng.ProcessFollow(ctx, evt))
		assert.Empty(client.Mutations())
	})
}

func TestDryRun(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, client := testEngine()
	eng.Client = platform.NewDryRunClient(client, nil)
	eng.Config.DryRun = true

	assert.NoError(eng.ProcessMessage(ctx, engine.TestMessage("800", "alice", "きゅぴこん")))
	assert.NoError(eng.ProcessMessage(ctx, directed("801", "alice", "フォロー解除")))
	assert.NoError(eng.ProcessMessage(ctx, directed("802", "alice", "いいねしないで")))

	assert.Empty(client.Mutations())
	// nothing recorded for a favorite that never happened
	n, err := eng.Sets.Len(ctx, setstore.SetFavorited)
	assert.NoError(err)
	assert.Equal(0, n)
	// local decision state still advances
	denied, err := policystore.GetFlag(ctx, eng.Policies, "uid-alice", policystore.FieldDenyFavorite)
	assert.NoError(err)
	assert.True(denied)
}
