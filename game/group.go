/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"slices"
	"strings"
)

// Group is a set of players who wrote the same canonical answer.
type Group struct {
	Key     Key      `json:"key"`
	Players []string `json:"players"`
}

// Size returns the number of players in the group.
func (g Group) Size() int {
	return len(g.Players)
}

// GroupAnswers normalizes every submission with normalize and buckets the
// player ids by key. Blank answers each form their own singleton group.
//
// Players within a group are sorted by id. Groups are ordered largest
// first, ties broken by their smallest player id, so identical inputs
// always produce identical output.
func GroupAnswers(submissions map[string]string, normalize Normalizer) []Group {
	if normalize == nil {
		normalize = Normalize
	}

	keys := make(map[string]Key, len(submissions))
	for playerID, raw := range submissions {
		keys[playerID] = normalize(raw)
	}

	return GroupKeys(keys)
}

// GroupKeys buckets already-normalized keys. See GroupAnswers.
func GroupKeys(keys map[string]Key) []Group {
	buckets := make(map[Key][]string, len(keys))
	var groups []Group

	for playerID, key := range keys {
		if key == Blank {
			groups = append(groups, Group{Key: Blank, Players: []string{playerID}})
			continue
		}
		buckets[key] = append(buckets[key], playerID)
	}

	for key, players := range buckets {
		groups = append(groups, Group{Key: key, Players: players})
	}

	for _, g := range groups {
		slices.Sort(g.Players)
	}

	slices.SortFunc(groups, func(a, b Group) int {
		if a.Size() != b.Size() {
			return b.Size() - a.Size()
		}
		return strings.Compare(a.Players[0], b.Players[0])
	})

	return groups
}
