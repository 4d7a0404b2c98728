package game

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T, opts RegistryOptions) (*Registry, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	opts.Now = clock.Now
	if opts.NewRoomID == nil {
		opts.NewRoomID = sequentialIDs("room")
	}
	if opts.Room.NewPlayerID == nil {
		opts.Room.NewPlayerID = sequentialIDs("p")
	}

	return NewRegistry(opts), clock
}

func TestNewRoomID(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for range 100 {
		id := NewRoomID()
		assert.Len(t, id, 8)
		assert.Regexp(t, `^[A-Za-z0-9]{8}$`, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestRegistry_CreateGetRemove(t *testing.T) {
	t.Parallel()

	var removed []string
	g, _ := setupRegistry(t, RegistryOptions{
		OnRemove: func(room *Room) { removed = append(removed, room.ID()) },
	})

	id, err := g.CreateRoom()
	require.NoError(t, err)
	assert.Equal(t, "room1", id)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, []string{"room1"}, g.Rooms())

	room, err := g.Get(id)
	require.NoError(t, err)
	assert.Equal(t, PhaseLobby, room.Phase())

	g.Remove(id)
	g.Remove(id)

	_, err = g.Get(id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.Equal(t, []string{"room1"}, removed)
	assert.Zero(t, g.Len())
}

func TestRegistry_CreateRoomSkipsCollisions(t *testing.T) {
	t.Parallel()

	ids := []string{"same", "same", "same", "other"}
	n := 0
	g, _ := setupRegistry(t, RegistryOptions{
		NewRoomID: func() string {
			id := ids[n]
			n++
			return id
		},
	})

	first, err := g.CreateRoom()
	require.NoError(t, err)
	second, err := g.CreateRoom()
	require.NoError(t, err)

	assert.Equal(t, "same", first)
	assert.Equal(t, "other", second)
}

func TestRegistry_CreateRoomGivesUp(t *testing.T) {
	t.Parallel()

	g, _ := setupRegistry(t, RegistryOptions{
		NewRoomID: func() string { return "stuck" },
	})

	_, err := g.CreateRoom()
	require.NoError(t, err)

	_, err = g.CreateRoom()
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestRegistry_UnknownRoom(t *testing.T) {
	t.Parallel()

	g, _ := setupRegistry(t, RegistryOptions{})

	_, err := g.Join("nope", "A")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = g.Leave("nope", "p1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = g.Submit("nope", "p1", "x")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, g.StartRound("nope", "x"), ErrRoomNotFound)
	_, err = g.ForceAdvance("nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, g.ContinueOrFinish("nope", Continue, "x"), ErrRoomNotFound)
	_, err = g.View("nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRegistry_RoutedRound(t *testing.T) {
	t.Parallel()

	g, _ := setupRegistry(t, RegistryOptions{})

	roomID, err := g.CreateRoom()
	require.NoError(t, err)

	a, err := g.Join(roomID, "A")
	require.NoError(t, err)
	b, err := g.Join(roomID, "B")
	require.NoError(t, err)
	c, err := g.Join(roomID, "C")
	require.NoError(t, err)

	require.NoError(t, g.StartRound(roomID, "happy"))

	_, err = g.Submit(roomID, a, "glad")
	require.NoError(t, err)
	_, err = g.Submit(roomID, b, "Glad")
	require.NoError(t, err)

	advanced, err := g.ForceAdvance(roomID)
	require.NoError(t, err)
	require.True(t, advanced)

	advanced, err = g.ForceAdvance(roomID)
	require.NoError(t, err)
	assert.False(t, advanced)

	view, err := g.View(roomID)
	require.NoError(t, err)
	assert.Equal(t, PhaseRevealed, view.Phase)
	assert.Equal(t, map[string]int{a: 1, b: 1, c: 0}, view.Scores)

	require.NoError(t, g.ContinueOrFinish(roomID, Finish, ""))

	_, err = g.Leave(roomID, c)
	require.NoError(t, err)

	view, err = g.View(roomID)
	require.NoError(t, err)
	assert.Equal(t, PhaseFinished, view.Phase)
	assert.Len(t, view.Players, 2)
}

func TestRegistry_ReapEmptyRooms(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		removed []string
	)
	g, clock := setupRegistry(t, RegistryOptions{
		EmptyGrace: time.Minute,
		OnRemove: func(room *Room) {
			mu.Lock()
			removed = append(removed, room.ID())
			mu.Unlock()
		},
	})

	empty, err := g.CreateRoom()
	require.NoError(t, err)
	occupied, err := g.CreateRoom()
	require.NoError(t, err)
	emptied, err := g.CreateRoom()
	require.NoError(t, err)

	_, err = g.Join(occupied, "A")
	require.NoError(t, err)
	leaver, err := g.Join(emptied, "B")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	_, err = g.Leave(emptied, leaver)
	require.NoError(t, err)

	assert.Empty(t, g.Reap(), "nothing is past its grace yet")

	clock.Advance(31 * time.Second)
	assert.Equal(t, []string{empty}, g.Reap())

	clock.Advance(30 * time.Second)
	assert.Equal(t, []string{emptied}, g.Reap())

	clock.Advance(time.Hour)
	assert.Empty(t, g.Reap(), "rooms with players stay without an idle timeout")

	_, err = g.Get(occupied)
	assert.NoError(t, err)
	assert.Equal(t, []string{empty, emptied}, removed)
}

func TestRegistry_ReapIdleRooms(t *testing.T) {
	t.Parallel()

	g, clock := setupRegistry(t, RegistryOptions{
		EmptyGrace:  time.Hour,
		IdleTimeout: 10 * time.Minute,
	})

	stale, err := g.CreateRoom()
	require.NoError(t, err)
	busy, err := g.CreateRoom()
	require.NoError(t, err)

	_, err = g.Join(stale, "A")
	require.NoError(t, err)
	p, err := g.Join(busy, "B")
	require.NoError(t, err)

	clock.Advance(9 * time.Minute)
	require.NoError(t, g.StartRound(busy, "x"))
	_, err = g.Submit(busy, p, "y")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, []string{stale}, g.Reap())
	assert.Equal(t, 1, g.Len())
}

func TestRegistry_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	g := NewRegistry(RegistryOptions{SweepInterval: time.Millisecond})

	_, err := g.CreateRoom()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return g.Len() == 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRegistry_RoomsAreIndependent(t *testing.T) {
	t.Parallel()

	g, _ := setupRegistry(t, RegistryOptions{NewRoomID: NewRoomID})

	const rooms = 20
	const players = 5

	var wg sync.WaitGroup
	for range rooms {
		wg.Add(1)
		go func() {
			defer wg.Done()

			roomID, err := g.CreateRoom()
			if !assert.NoError(t, err) {
				return
			}

			ids := make([]string, 0, players)
			for i := range players {
				id, err := g.Join(roomID, fmt.Sprintf("player%d", i))
				assert.NoError(t, err)
				ids = append(ids, id)
			}

			assert.NoError(t, g.StartRound(roomID, "prompt"))

			var inner sync.WaitGroup
			for _, id := range ids {
				inner.Add(1)
				go func() {
					defer inner.Done()
					_, err := g.Submit(roomID, id, "same")
					assert.NoError(t, err)
				}()
			}
			inner.Wait()

			view, err := g.View(roomID)
			assert.NoError(t, err)
			assert.Equal(t, PhaseRevealed, view.Phase)
			for _, id := range ids {
				assert.Equal(t, players-1, view.Scores[id])
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, rooms, g.Len())
}

func TestKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "room_not_found", Kind(fmt.Errorf("wrapped: %w", ErrRoomNotFound)))
	assert.Equal(t, "invalid_phase", Kind(ErrInvalidPhase))
	assert.Equal(t, "duplicate_join", Kind(ErrDuplicateJoin))
	assert.Equal(t, "internal", Kind(fmt.Errorf("boom")))
}
