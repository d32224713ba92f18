package engine

import (
	"fmt"

	"github.com/bluesky-social/kyupikon/bot/annotate"
	"github.com/bluesky-social/kyupikon/bot/policystore"
	"github.com/bluesky-social/kyupikon/platform"
)

type ActionKind string

const (
	ActionReply     ActionKind = "reply"
	ActionFollow    ActionKind = "follow"
	ActionUnfollow  ActionKind = "unfollow"
	ActionFavorite  ActionKind = "favorite"
	ActionDelete    ActionKind = "delete"
	ActionSignImage ActionKind = "sign-image"
)

// Reply texts for the possible outcomes of a delete request.
type DeleteTexts struct {
	Deleted string
	// target missing, or not addressed to the requester
	Refused string
	// transient platform failure
	Failed string
}

// Apology texts for a sign request that could not be completed.
type SignTexts struct {
	// media missing or undecodable, or the image cannot fit the size budget
	Failed string
	// transient platform failure
	Retry string
}

// A single platform action requested by a rule. Follow, unfollow and reply act on the event's
// author.
type Action struct {
	Kind ActionKind
	Text string
	// content the action applies to (favorite, delete)
	ContentID string
	Delete    *DeleteTexts
	Sign      *SignTexts
	Media     *platform.Media
	Anchor    annotate.Anchor
}

// A single-field update to the author's policy record. Exactly one of Flag or Delta is used.
type PolicyUpdate struct {
	User  string
	Field policystore.Field
	Flag  *bool
	Delta int64
}

func (u PolicyUpdate) String() string {
	if u.Flag != nil {
		return fmt.Sprintf("%s=%t", u.Field, *u.Flag)
	}
	return fmt.Sprintf("%s%+d", u.Field, u.Delta)
}

// Mutable container for all the side-effects from rule execution. Collected while rules run and
// performed in order at the end: policy updates first, then actions, then notifications.
type Effects struct {
	// name of the rule which matched, if any
	Rule          string
	PolicyUpdates []PolicyUpdate
	Actions       []Action
	Notifications []string
	// kinds of actions which failed when performed
	Failed []string
}

func (e *Effects) addAction(a Action) {
	e.Actions = append(e.Actions, a)
}

func (e *Effects) addPolicyUpdate(u PolicyUpdate) {
	e.PolicyUpdates = append(e.PolicyUpdates, u)
}

func (e *Effects) ActionKinds() []string {
	out := make([]string, len(e.Actions))
	for i, a := range e.Actions {
		out[i] = string(a.Kind)
	}
	return out
}

func (e *Effects) PolicyUpdateNames() []string {
	out := make([]string, len(e.PolicyUpdates))
	for i, u := range e.PolicyUpdates {
		out[i] = u.String()
	}
	return out
}
