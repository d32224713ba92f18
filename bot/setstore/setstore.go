// Package setstore holds named sets of strings: the ledger of content ids already favorited,
// and static deny lists of user identities.
package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	// content ids the bot has favorited (or is about to)
	SetFavorited = "favorited"
	// users whose content must never be favorited
	SetDenyFavorite = "deny-favorite"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
	// Adds val to the named set. Returns true only if it was not already a member; concurrent
	// callers adding the same value see exactly one true.
	Add(ctx context.Context, name, val string) (bool, error)
	// does not error if val is not in the set
	Remove(ctx context.Context, name, val string) error
	Len(ctx context.Context, name string) (int, error)
}

// Adds every value from a JSON file (object of set name to list of values) to the store.
// Returns the number of values newly added.
func ImportJSON(ctx context.Context, s SetStore, p string) (int, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return 0, fmt.Errorf("parsing set file %s: %w", p, err)
	}

	n := 0
	for name, l := range sets {
		for _, val := range l {
			added, err := s.Add(ctx, name, val)
			if err != nil {
				return n, err
			}
			if added {
				n++
			}
		}
	}
	return n, nil
}
