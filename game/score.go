/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "fmt"

// Score awards each player the number of other players in their group.
// Every group member must be in roster, and no player may appear twice.
func Score(groups []Group, roster map[string]bool) (map[string]int, error) {
	deltas := make(map[string]int, len(roster))

	for _, g := range groups {
		for _, playerID := range g.Players {
			if !roster[playerID] {
				return nil, fmt.Errorf("%w: group %q references player %s outside the roster", ErrInvariant, g.Key, playerID)
			}
			if _, dup := deltas[playerID]; dup {
				return nil, fmt.Errorf("%w: player %s appears in more than one group", ErrInvariant, playerID)
			}
			deltas[playerID] = g.Size() - 1
		}
	}

	return deltas, nil
}
