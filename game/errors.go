/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrInvalidPhase     = errors.New("action not allowed in current phase")
	ErrDuplicateJoin    = errors.New("name already taken")
	ErrRoomFull         = errors.New("room full")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrInvalidName      = errors.New("invalid name")
	ErrNotHost          = errors.New("only the host may do that")

	// ErrInvariant marks internal inconsistency. It never results from
	// correct use of the public API.
	ErrInvariant = errors.New("internal invariant violated")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrRoomNotFound, "room_not_found"},
	{ErrPlayerNotFound, "player_not_found"},
	{ErrInvalidPhase, "invalid_phase"},
	{ErrDuplicateJoin, "duplicate_join"},
	{ErrRoomFull, "room_full"},
	{ErrNotEnoughPlayers, "not_enough_players"},
	{ErrInvalidName, "invalid_name"},
	{ErrNotHost, "not_host"},
	{ErrInvariant, "internal"},
}

// Kind returns a stable, wire-safe name for the error kind of err, or
// "internal" when err does not wrap one of the package errors.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return "internal"
}
