package platform

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// JSON representation of an account, as sent by the platform API and stream.
type AccountView struct {
	ID         string `json:"id"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name,omitempty"`
	Protected  bool   `json:"protected,omitempty"`
	// the account follows the authenticated (bot) account
	FollowsYou bool `json:"follows_you,omitempty"`
	// the authenticated (bot) account follows this account
	Following bool `json:"following,omitempty"`
}

func (v AccountView) Account() Account {
	return Account{
		ID:        v.ID,
		Handle:    v.ScreenName,
		Name:      v.Name,
		Protected: v.Protected,
	}
}

// JSON representation of a status.
type StatusView struct {
	ID                string       `json:"id"`
	Text              string       `json:"text"`
	User              AccountView  `json:"user"`
	CreatedAt         string       `json:"created_at,omitempty"`
	InReplyToStatusID string       `json:"in_reply_to_status_id,omitempty"`
	InReplyToUserID   string       `json:"in_reply_to_user_id,omitempty"`
	Media             []MediaView  `json:"media,omitempty"`
	RetweetedStatus   *StatusView  `json:"retweeted_status,omitempty"`
	Entities          *EntityViews `json:"entities,omitempty"`
}

type EntityViews struct {
	Media []MediaView `json:"media,omitempty"`
}

type MediaView struct {
	Type          string `json:"type"`
	MediaURL      string `json:"media_url,omitempty"`
	MediaURLHTTPS string `json:"media_url_https,omitempty"`
}

// Converts the wire status into the normalized Message. selfHandle is the bot's own
// handle, used to compute the sender relation.
func (v *StatusView) Message(selfHandle string) Message {
	msg := Message{
		ID:              v.ID,
		Sender:          v.User.Account(),
		Relation:        RelationOther,
		Text:            v.Text,
		InReplyToID:     v.InReplyToStatusID,
		InReplyToUserID: v.InReplyToUserID,
		IsRetweet:       v.RetweetedStatus != nil || strings.HasPrefix(v.Text, "RT @"),
	}
	if selfHandle != "" && strings.EqualFold(v.User.ScreenName, selfHandle) {
		msg.Relation = RelationSelf
	} else if v.User.FollowsYou {
		msg.Relation = RelationFollower
	}

	// some payloads carry media at the top level, older ones under "entities"
	views := v.Media
	if len(views) == 0 && v.Entities != nil {
		views = v.Entities.Media
	}
	for _, mv := range views {
		u := mv.MediaURLHTTPS
		if u == "" {
			u = mv.MediaURL
		}
		msg.Media = append(msg.Media, Media{Type: mv.Type, URL: u})
	}

	if v.CreatedAt != "" {
		if t, err := dateparse.ParseAny(v.CreatedAt); err == nil {
			msg.CreatedAt = t.UTC()
		}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return msg
}

// JSON representation of a follow event.
type FollowView struct {
	Source AccountView `json:"source"`
	Target AccountView `json:"target"`
}

func (v *FollowView) FollowEvent() FollowEvent {
	return FollowEvent{
		Source:                 v.Source.Account(),
		Target:                 v.Target.Account(),
		SourceFollowedByTarget: v.Source.Following,
	}
}
