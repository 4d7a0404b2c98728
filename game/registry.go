/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

const idLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewRoomID returns a crypto-random 8-character room id.
func NewRoomID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, len(buf))
	for i := range out {
		out[i] = idLetters[int(buf[i])%len(idLetters)]
	}

	return string(out)
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	Room RoomOptions

	// EmptyGrace is how long a room may have no players before it is
	// reaped. Zero reaps empty rooms on the next sweep.
	EmptyGrace time.Duration

	// IdleTimeout reaps rooms with no activity at all for this long,
	// regardless of roster. Zero disables it.
	IdleTimeout time.Duration

	// SweepInterval is how often Run reaps. Defaults to EmptyGrace/2,
	// with a floor of one second.
	SweepInterval time.Duration

	NewRoomID func() string
	Now       func() time.Time

	// OnRemove is called, outside any registry lock, for every room that
	// is removed or reaped.
	OnRemove func(room *Room)

	Logf func(format string, args ...any)
}

// Registry owns every live room, keyed by id. Operations on different
// rooms never contend on anything but the brief map lookup.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	opts  RegistryOptions
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.NewRoomID == nil {
		opts.NewRoomID = NewRoomID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Room.Now == nil {
		opts.Room.Now = opts.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = max(opts.EmptyGrace/2, time.Second)
	}

	return &Registry{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// CreateRoom registers a new lobby and returns its id.
func (g *Registry) CreateRoom() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for range 100 {
		id := g.opts.NewRoomID()
		if _, exists := g.rooms[id]; exists {
			continue
		}

		g.rooms[id] = NewRoom(id, g.opts.Room)
		g.logf("GAMES: Created room %s", id)

		return id, nil
	}

	return "", fmt.Errorf("%w: could not generate a unique room id", ErrInvariant)
}

// Get returns the room with the given id.
func (g *Registry) Get(roomID string) (*Room, error) {
	g.mu.RLock()
	room, ok := g.rooms[roomID]
	g.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	return room, nil
}

// Remove discards a room. Removing an unknown room is a no-op.
func (g *Registry) Remove(roomID string) {
	g.mu.Lock()
	room, ok := g.rooms[roomID]
	delete(g.rooms, roomID)
	g.mu.Unlock()

	if ok {
		g.removed(room, "removed")
	}
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.rooms)
}

// Rooms returns the ids of all live rooms.
func (g *Registry) Rooms() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}

	return ids
}

func (g *Registry) Join(roomID, name string) (string, error) {
	room, err := g.Get(roomID)
	if err != nil {
		return "", err
	}

	return room.Join(name)
}

func (g *Registry) Leave(roomID, playerID string) (bool, error) {
	room, err := g.Get(roomID)
	if err != nil {
		return false, err
	}

	return room.Leave(playerID)
}

func (g *Registry) Submit(roomID, playerID, raw string) (bool, error) {
	room, err := g.Get(roomID)
	if err != nil {
		return false, err
	}

	return room.Submit(playerID, raw)
}

func (g *Registry) StartRound(roomID, prompt string) error {
	room, err := g.Get(roomID)
	if err != nil {
		return err
	}

	return room.StartRound(prompt)
}

// ForceAdvance is idempotent: it reports false without error when the
// room is not collecting.
func (g *Registry) ForceAdvance(roomID string) (bool, error) {
	room, err := g.Get(roomID)
	if err != nil {
		return false, err
	}

	return room.ForceAdvance()
}

func (g *Registry) ContinueOrFinish(roomID string, decision Decision, prompt string) error {
	room, err := g.Get(roomID)
	if err != nil {
		return err
	}

	return room.ContinueOrFinish(decision, prompt)
}

func (g *Registry) View(roomID string) (Snapshot, error) {
	room, err := g.Get(roomID)
	if err != nil {
		return Snapshot{}, err
	}

	return room.View(), nil
}

// Reap removes every room that has been empty longer than EmptyGrace or
// idle longer than IdleTimeout, and returns their ids.
func (g *Registry) Reap() []string {
	now := g.opts.Now()

	g.mu.RLock()
	candidates := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		candidates = append(candidates, room)
	}
	g.mu.RUnlock()

	var expired []*Room
	for _, room := range candidates {
		if g.expired(room, now) {
			expired = append(expired, room)
		}
	}

	if len(expired) == 0 {
		return nil
	}

	ids := make([]string, 0, len(expired))
	reaped := make([]*Room, 0, len(expired))

	g.mu.Lock()
	for _, room := range expired {
		// the room may have been removed or replaced meanwhile
		if g.rooms[room.ID()] != room || !g.expired(room, now) {
			continue
		}
		delete(g.rooms, room.ID())
		ids = append(ids, room.ID())
		reaped = append(reaped, room)
	}
	g.mu.Unlock()

	for _, room := range reaped {
		g.removed(room, "reaped")
	}

	return ids
}

// Run reaps expired rooms every SweepInterval until ctx is done.
func (g *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(g.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Reap()
		}
	}
}

func (g *Registry) expired(room *Room, now time.Time) bool {
	lastActive, emptySince, players := room.activity()

	if players == 0 && !emptySince.IsZero() && now.Sub(emptySince) >= g.opts.EmptyGrace {
		return true
	}

	return g.opts.IdleTimeout > 0 && now.Sub(lastActive) >= g.opts.IdleTimeout
}

func (g *Registry) removed(room *Room, how string) {
	g.logf("GAMES: Room %s %s", room.ID(), how)

	if g.opts.OnRemove != nil {
		g.opts.OnRemove(room)
	}
}

func (g *Registry) logf(format string, args ...any) {
	if g.opts.Logf != nil {
		g.opts.Logf(format, args...)
	}
}
