// Package policystore persists per-user reply policy: boolean flags and interaction counters.
//
// Each user record is a small map of named integer fields. Flags are stored as 0/1. Records
// are created lazily by the first write; reads of unknown users or fields report absent
// rather than erroring, and callers apply the field's default.
package policystore

import (
	"context"
)

type Field string

const (
	// reply to every message from the user, not just directed or keyword ones
	FieldAllowAllReplies Field = "allowAllReplies"
	// never favorite the user's content
	FieldDenyFavorite Field = "denyFavorite"
	// never send throttled (fallback) replies to the user
	FieldDenyReply Field = "denyReply"
	// number of fallback replies sent to the user; only ever increases until bulk reset
	FieldReplyCount Field = "replyCount"
)

var AllFields = []Field{FieldAllowAllReplies, FieldDenyFavorite, FieldDenyReply, FieldReplyCount}

type PolicyStore interface {
	// Returns the value and whether it was present.
	Get(ctx context.Context, user string, field Field) (int64, bool, error)
	// Upserts a single field.
	Set(ctx context.Context, user string, field Field, val int64) error
	// Atomically adds delta to the field (absent counts as zero) and returns the new value.
	Increment(ctx context.Context, user string, field Field, delta int64) (int64, error)
	// Removes the field from every user record. Returns the number of records touched.
	ResetField(ctx context.Context, field Field) (int, error)
}

// Helper for flag fields: absent is false.
func GetFlag(ctx context.Context, s PolicyStore, user string, field Field) (bool, error) {
	v, ok, err := s.Get(ctx, user, field)
	if err != nil {
		return false, err
	}
	return ok && v != 0, nil
}

func SetFlag(ctx context.Context, s PolicyStore, user string, field Field, val bool) error {
	var v int64
	if val {
		v = 1
	}
	return s.Set(ctx, user, field, v)
}

// Snapshot of one user's policy, with defaults applied.
type UserPolicy struct {
	AllowAllReplies bool  `json:"allowAllReplies"`
	DenyFavorite    bool  `json:"denyFavorite"`
	DenyReply       bool  `json:"denyReply"`
	ReplyCount      int64 `json:"replyCount"`
}

func Load(ctx context.Context, s PolicyStore, user string) (*UserPolicy, error) {
	var p UserPolicy
	for _, f := range AllFields {
		v, _, err := s.Get(ctx, user, f)
		if err != nil {
			return nil, err
		}
		switch f {
		case FieldAllowAllReplies:
			p.AllowAllReplies = v != 0
		case FieldDenyFavorite:
			p.DenyFavorite = v != 0
		case FieldDenyReply:
			p.DenyReply = v != 0
		case FieldReplyCount:
			p.ReplyCount = v
		}
	}
	return &p, nil
}
