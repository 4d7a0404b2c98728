/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLength = 32

// RoomOptions controls the rules a room enforces. The zero value is
// usable: no player limits, unlimited rounds, duplicate names allowed.
type RoomOptions struct {
	MinPlayers  int
	MaxPlayers  int
	MaxRounds   int
	UniqueNames bool
	Normalizer  Normalizer

	NewPlayerID func() string
	Now         func() time.Time
}

func (o RoomOptions) withDefaults() RoomOptions {
	if o.Normalizer == nil {
		o.Normalizer = Normalize
	}
	if o.NewPlayerID == nil {
		o.NewPlayerID = uuid.NewString
	}
	if o.Now == nil {
		o.Now = time.Now
	}

	return o
}

type player struct {
	id        string
	name      string
	score     int
	connected bool
}

// Room is one game instance. All methods are safe for concurrent use;
// mutations on a single room are applied one at a time.
type Room struct {
	mu   sync.RWMutex
	id   string
	opts RoomOptions

	players []*player
	hostID  string

	phase  Phase
	round  int
	prompt string

	// participants are the players eligible to answer the active round.
	participants map[string]bool
	answers      map[string]string
	history      []RoundResult

	createdAt  time.Time
	lastActive time.Time
	emptySince time.Time
}

// NewRoom returns a room in the lobby phase.
func NewRoom(id string, opts RoomOptions) *Room {
	opts = opts.withDefaults()
	now := opts.Now()

	return &Room{
		id:         id,
		opts:       opts,
		phase:      PhaseLobby,
		createdAt:  now,
		lastActive: now,
		emptySince: now,
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.phase
}

func (r *Room) Round() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.round
}

// Join adds a player to the roster and returns their id. Players joining
// mid-round take part from the next round on.
func (r *Room) Join(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: must be 1-%d characters", ErrInvalidName, maxNameLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFinished {
		return "", fmt.Errorf("%w: room %s is finished", ErrInvalidPhase, r.id)
	}

	if r.opts.MaxPlayers > 0 && len(r.players) >= r.opts.MaxPlayers {
		return "", fmt.Errorf("%w: %d players", ErrRoomFull, r.opts.MaxPlayers)
	}

	if r.opts.UniqueNames {
		for _, p := range r.players {
			if strings.EqualFold(p.name, name) {
				return "", fmt.Errorf("%w: %q", ErrDuplicateJoin, name)
			}
		}
	}

	p := &player{
		id:        r.opts.NewPlayerID(),
		name:      name,
		connected: true,
	}
	r.players = append(r.players, p)
	r.electHostLocked()
	r.touchLocked()

	return p.id, nil
}

// Leave removes a player from the roster and from the active round. It
// reports whether their departure completed the round.
func (r *Room) Leave(playerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(playerID)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}

	r.players = append(r.players[:i], r.players[i+1:]...)
	delete(r.participants, playerID)
	delete(r.answers, playerID)

	if r.hostID == playerID {
		r.hostID = ""
	}
	r.electHostLocked()
	r.touchLocked()

	return r.revealIfCompleteLocked()
}

// SetConnected records the connection liveness of a player.
func (r *Room) SetConnected(playerID string, connected bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(playerID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}

	r.players[i].connected = connected
	if !connected && r.hostID == playerID {
		r.hostID = ""
	}
	r.electHostLocked()
	r.touchLocked()

	return nil
}

// IsHost reports whether playerID currently hosts the room.
func (r *Room) IsHost(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return playerID != "" && r.hostID == playerID
}

// Has reports whether playerID is on the roster.
func (r *Room) Has(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.indexLocked(playerID) >= 0
}

// StartRound leaves the lobby and opens the first round with prompt.
func (r *Room) StartRound(prompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseLobby {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidPhase, r.phase)
	}

	if connected := r.connectedLocked(); connected < max(r.opts.MinPlayers, 1) {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughPlayers, connected, max(r.opts.MinPlayers, 1))
	}

	r.openRoundLocked(prompt)

	return nil
}

// Submit records an answer for the active round, replacing any earlier
// answer from the same player. It reports whether this answer completed
// the round.
func (r *Room) Submit(playerID, raw string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(playerID) < 0 {
		return false, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}

	if r.phase != PhaseCollecting {
		return false, fmt.Errorf("%w: cannot submit during %s", ErrInvalidPhase, r.phase)
	}

	if !r.participants[playerID] {
		return false, fmt.Errorf("%w: joined after round %d started", ErrInvalidPhase, r.round)
	}

	r.answers[playerID] = raw
	r.touchLocked()

	return r.revealIfCompleteLocked()
}

// ForceAdvance reveals the active round, scoring missing answers as blank.
// It does nothing unless the room is collecting.
func (r *Room) ForceAdvance() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseCollecting {
		return false, nil
	}

	if err := r.revealLocked(); err != nil {
		return false, err
	}

	return true, nil
}

// ForceAdvanceRound is ForceAdvance restricted to a specific round
// number, for timers that may fire after their round already ended.
func (r *Room) ForceAdvanceRound(round int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseCollecting || r.round != round {
		return false, nil
	}

	if err := r.revealLocked(); err != nil {
		return false, err
	}

	return true, nil
}

// ContinueOrFinish leaves the revealed phase. Continue opens the next
// round with prompt, unless the round limit is reached, in which case the
// game finishes.
func (r *Room) ContinueOrFinish(decision Decision, prompt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseRevealed {
		return fmt.Errorf("%w: cannot continue from %s", ErrInvalidPhase, r.phase)
	}

	r.touchLocked()

	if decision == Finish || (r.opts.MaxRounds > 0 && r.round >= r.opts.MaxRounds) {
		r.phase = PhaseFinished
		return nil
	}

	r.openRoundLocked(prompt)

	return nil
}

// History returns the completed rounds, oldest first.
func (r *Room) History() []RoundResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneResults(r.history)
}

// View returns a snapshot of the room.
func (r *Room) View() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		ID:        r.id,
		Phase:     r.phase,
		Round:     r.round,
		MaxRounds: r.opts.MaxRounds,
		Prompt:    r.prompt,
		Players:   make([]PlayerView, 0, len(r.players)),
	}

	for _, p := range r.players {
		s.Players = append(s.Players, PlayerView{
			ID:        p.id,
			Name:      p.name,
			Connected: p.connected,
			Host:      p.id == r.hostID,
		})
	}

	switch r.phase {
	case PhaseCollecting:
		for _, p := range r.players {
			if !r.participants[p.id] {
				continue
			}
			if _, ok := r.answers[p.id]; ok {
				s.Submitted = append(s.Submitted, p.id)
			} else {
				s.Waiting = append(s.Waiting, p.id)
			}
		}
	case PhaseRevealed, PhaseFinished:
		s.Scores = make(map[string]int, len(r.players))
		for _, p := range r.players {
			s.Scores[p.id] = p.score
		}
		s.Results = cloneResults(r.history)
	}

	return s
}

// activity returns the last mutation time, when the roster became empty
// (zero if it is not), and the roster size.
func (r *Room) activity() (lastActive, emptySince time.Time, players int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastActive, r.emptySince, len(r.players)
}

func (r *Room) openRoundLocked(prompt string) {
	r.round++
	r.prompt = prompt
	r.phase = PhaseCollecting
	r.answers = make(map[string]string, len(r.players))
	r.participants = make(map[string]bool, len(r.players))
	for _, p := range r.players {
		r.participants[p.id] = true
	}
	r.touchLocked()
}

// revealIfCompleteLocked reveals once every participant has answered. A
// round whose participants have all left reveals empty.
func (r *Room) revealIfCompleteLocked() (bool, error) {
	if r.phase != PhaseCollecting {
		return false, nil
	}

	for id := range r.participants {
		if _, ok := r.answers[id]; !ok {
			return false, nil
		}
	}

	if err := r.revealLocked(); err != nil {
		return false, err
	}

	return true, nil
}

// revealLocked freezes the active round and scores it. On error the room
// is left untouched.
func (r *Room) revealLocked() error {
	roster := make(map[string]bool, len(r.players))
	for _, p := range r.players {
		roster[p.id] = true
	}

	keys := make(map[string]Key, len(r.participants))
	answers := make(map[string]string, len(r.participants))
	for id := range r.participants {
		raw, ok := r.answers[id]
		if !ok {
			keys[id] = Blank
			continue
		}
		answers[id] = raw
		keys[id] = r.opts.Normalizer(raw)
	}

	groups := GroupKeys(keys)

	deltas, err := Score(groups, roster)
	if err != nil {
		return fmt.Errorf("room %s round %d: %w", r.id, r.round, err)
	}

	for _, p := range r.players {
		p.score += deltas[p.id]
	}

	r.history = append(r.history, RoundResult{
		Number:  r.round,
		Prompt:  r.prompt,
		Answers: answers,
		Keys:    keys,
		Groups:  groups,
		Deltas:  maps.Clone(deltas),
	})

	r.phase = PhaseRevealed
	r.answers = nil
	r.participants = nil
	r.touchLocked()

	return nil
}

func (r *Room) indexLocked(playerID string) int {
	for i, p := range r.players {
		if p.id == playerID {
			return i
		}
	}

	return -1
}

func (r *Room) connectedLocked() int {
	n := 0
	for _, p := range r.players {
		if p.connected {
			n++
		}
	}

	return n
}

// electHostLocked keeps a connected host, or hands the role to the
// earliest-joined connected player.
func (r *Room) electHostLocked() {
	if i := r.indexLocked(r.hostID); i >= 0 && r.players[i].connected {
		return
	}

	r.hostID = ""
	for _, p := range r.players {
		if p.connected {
			r.hostID = p.id
			return
		}
	}
}

func (r *Room) touchLocked() {
	r.lastActive = r.opts.Now()

	if len(r.players) > 0 {
		r.emptySince = time.Time{}
	} else if r.emptySince.IsZero() {
		r.emptySince = r.lastActive
	}
}
