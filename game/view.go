/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Phase is the state of a room's round protocol.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseCollecting
	PhaseRevealed
	PhaseFinished
)

var phaseNames = [...]string{
	PhaseLobby:      "lobby",
	PhaseCollecting: "collecting",
	PhaseRevealed:   "revealed",
	PhaseFinished:   "finished",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}

	return phaseNames[p]
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	for i, n := range phaseNames {
		if n == name {
			*p = Phase(i)
			return nil
		}
	}

	return fmt.Errorf("unknown phase %q", name)
}

// Decision is the outcome chosen after a round has been revealed.
type Decision int

const (
	Continue Decision = iota
	Finish
)

// RoundResult is the frozen outcome of one round. It is never modified
// after being appended to a room's history; rooms only hand out copies.
type RoundResult struct {
	Number  int               `json:"number"`
	Prompt  string            `json:"prompt"`
	Answers map[string]string `json:"answers"`

	// Keys holds each participant's normalized answer. Every blank answer
	// shows as Blank here, but blanks never match one another: compare
	// players through Groups, or use Matches.
	Keys   map[string]Key `json:"keys"`
	Groups []Group        `json:"groups"`
	Deltas map[string]int `json:"deltas"`
}

// Matches reports whether players a and b gave matching answers.
func (r RoundResult) Matches(a, b string) bool {
	ka, okA := r.Keys[a]
	kb, okB := r.Keys[b]

	return okA && okB && a != b && ka != Blank && ka == kb
}

func (r RoundResult) clone() RoundResult {
	out := r
	out.Answers = maps.Clone(r.Answers)
	out.Keys = maps.Clone(r.Keys)
	out.Deltas = maps.Clone(r.Deltas)

	if r.Groups != nil {
		out.Groups = make([]Group, len(r.Groups))
		for i, g := range r.Groups {
			out.Groups[i] = Group{Key: g.Key, Players: slices.Clone(g.Players)}
		}
	}

	return out
}

func cloneResults(results []RoundResult) []RoundResult {
	if results == nil {
		return nil
	}

	out := make([]RoundResult, len(results))
	for i, r := range results {
		out[i] = r.clone()
	}

	return out
}

// PlayerView is the public part of a player.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Host      bool   `json:"host"`
}

// Snapshot is a read-only copy of a room, safe to serialize and hand to
// any number of readers.
//
// Answers, scores and results are only populated once the current round
// has been revealed or the game is finished. While collecting, only the
// ids of players who have answered are exposed.
type Snapshot struct {
	ID        string         `json:"id"`
	Phase     Phase          `json:"phase"`
	Round     int            `json:"round"`
	MaxRounds int            `json:"max_rounds,omitempty"`
	Prompt    string         `json:"prompt,omitempty"`
	Players   []PlayerView   `json:"players"`
	Waiting   []string       `json:"waiting,omitempty"`
	Submitted []string       `json:"submitted,omitempty"`
	Scores    map[string]int `json:"scores,omitempty"`
	Results   []RoundResult  `json:"results,omitempty"`
}

// Latest returns the most recent round result, if any is visible.
func (s Snapshot) Latest() (RoundResult, bool) {
	if len(s.Results) == 0 {
		return RoundResult{}, false
	}

	return s.Results[len(s.Results)-1], true
}

// Standings returns player ids ordered by score, highest first. Ties keep
// join order.
func (s Snapshot) Standings() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.ID)
	}

	slices.SortStableFunc(ids, func(a, b string) int {
		return s.Scores[b] - s.Scores[a]
	})

	return ids
}
