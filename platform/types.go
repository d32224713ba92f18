package platform

import (
	"time"
)

// Relation of a message author to the bot account.
type Relation string

const (
	RelationOther    Relation = "other"
	RelationFollower Relation = "follower"
	RelationSelf     Relation = "self"
)

type Account struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Name      string `json:"name,omitempty"`
	Protected bool   `json:"protected,omitempty"`
}

const (
	MediaTypePhoto = "photo"
	MediaTypeVideo = "video"
	MediaTypeGIF   = "animated_gif"
)

type Media struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (m Media) IsPhoto() bool {
	return m.Type == MediaTypePhoto
}

// Normalized inbound status. Immutable once received; every transport representation is
// converted to this type at the inbound boundary.
type Message struct {
	ID              string
	Sender          Account
	Relation        Relation
	Text            string
	Media           []Media
	InReplyToID     string
	InReplyToUserID string
	IsRetweet       bool
	CreatedAt       time.Time
}

// Emitted when Source starts following Target.
type FollowEvent struct {
	Source Account
	Target Account
	// whether Target (usually the bot) was already following Source when the event arrived
	SourceFollowedByTarget bool
}

type PostInput struct {
	Text string
	// if set, the text is prefixed with "@handle "
	ToHandle    string
	InReplyToID string
	// local path of an image file to attach
	MediaPath string
}

// Rendered status text, including the addressee prefix.
func (p PostInput) FullText() string {
	if p.ToHandle == "" {
		return p.Text
	}
	return "@" + p.ToHandle + " " + p.Text
}

type Configuration struct {
	PhotoSizeLimit int `json:"photo_size_limit"`
}

// Outcome of a successful favorite call. Hard failures are returned as errors.
type FavoriteResult int

const (
	FavoriteOK FavoriteResult = iota
	// the content was already favorited; repeating the action is not a failure
	FavoriteAlreadyDone
)

func (r FavoriteResult) String() string {
	switch r {
	case FavoriteOK:
		return "ok"
	case FavoriteAlreadyDone:
		return "already-done"
	default:
		return "unknown"
	}
}
