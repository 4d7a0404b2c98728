// Groupthink
//
// Every round shows all players the same prompt. Each player privately
// writes a synonym, trying to guess what most of the others will write.
// Once everyone has answered (or the round timer runs out), answers are
// revealed and grouped, and each player scores one point for every other
// player who wrote the same thing.
//
// Features:
// - WebSockets per room: /groupthink/:roomid and /groupthink/:roomid/ws
// - First player to join hosts; host duty passes on when they leave
// - Host starts the game, ends rounds early, continues or finishes
// - Answers stay hidden until the round is revealed
// - Players identified by cookie, so a reload rejoins the same seat
// - Disconnected players are removed after a configurable timeout
// - Empty and idle rooms are reaped automatically
// - Random 8-char room IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Seednode/groupthink/game"
	"github.com/Seednode/groupthink/lexicon"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

const (
	maxChatLength  = 200
	maxMessageSize = 4096
	writeWait      = 10 * time.Second
)

// Messages coming from clients
type ClientMessage struct {
	Type   string `json:"type"`             // "join", "leave", "submit", "start", "advance", "continue", "finish", "chat"
	Name   string `json:"name,omitempty"`   // join
	Answer string `json:"answer,omitempty"` // submit
	Text   string `json:"text,omitempty"`   // chat
}

// SessionInfoMessage tells a connection which room it is in and which
// player, if any, its cookie is bound to.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "session_info"
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id,omitempty"`
}

// RoomStateMessage carries the room snapshot every connection may see.
type RoomStateMessage struct {
	Type  string        `json:"type"` // "room_state"
	State game.Snapshot `json:"state"`
}

// Sent only to the client whose action failed
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ChatMessage struct {
	Type string `json:"type"` // "chat"
	From string `json:"from"`
	Text string `json:"text"`
}

type Client struct {
	conn    *websocket.Conn
	send    chan any
	token   string
	limiter *rate.Limiter
}

type action struct {
	client *Client
	msg    ClientMessage
}

type expiry struct {
	token string
	gen   int
}

// Hub owns the connections of one room. Its run loop is the only
// goroutine touching clients and players.
type Hub struct {
	id   string
	room *game.Room
	gm   *GameManager

	clients map[*Client]bool
	players map[string]string // cookie token -> player id
	away    map[string]int    // cookie token -> disconnect generation

	register chan *Client
	unreg    chan *Client
	actions  chan action
	timeouts chan int
	expired  chan expiry
	done     chan struct{}

	timer *time.Timer
}

func newHub(gm *GameManager, room *game.Room) *Hub {
	return &Hub{
		id:       room.ID(),
		room:     room,
		gm:       gm,
		clients:  make(map[*Client]bool),
		players:  make(map[string]string),
		away:     make(map[string]int),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		actions:  make(chan action, 64),
		timeouts: make(chan int),
		expired:  make(chan expiry),
		done:     make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.closeClients()
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unreg:
			h.handleUnregister(c)

		case a := <-h.actions:
			h.handleAction(a)

		case round := <-h.timeouts:
			h.handleTimeout(round)

		case e := <-h.expired:
			h.handleExpired(e)
		}
	}
}

func (h *Hub) cfg() *Config {
	return h.gm.cfg
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = true
	h.gm.metrics.connected.Inc()

	if playerID, ok := h.players[c.token]; ok {
		if err := h.room.SetConnected(playerID, true); err != nil {
			// removed while away; the cookie has to join again
			delete(h.players, c.token)
		}
	}

	h.deliver(c, SessionInfoMessage{
		Type:     "session_info",
		RoomID:   h.id,
		PlayerID: h.players[c.token],
	})
	h.broadcastState()
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.gm.metrics.connected.Dec()

	playerID, ok := h.players[c.token]
	if !ok || h.tokenConnected(c.token) {
		return
	}

	_ = h.room.SetConnected(playerID, false)
	h.scheduleRemoval(c.token)
	h.broadcastState()
}

// scheduleRemoval removes the player bound to token once playerTimeout
// passes, unless they reconnect first.
func (h *Hub) scheduleRemoval(token string) {
	h.away[token]++
	e := expiry{token: token, gen: h.away[token]}

	time.AfterFunc(h.cfg().playerTimeout, func() {
		select {
		case h.expired <- e:
		case <-h.done:
		}
	})
}

func (h *Hub) handleExpired(e expiry) {
	token := e.token
	if h.away[token] != e.gen || h.tokenConnected(token) {
		return
	}
	delete(h.away, token)

	playerID, ok := h.players[token]
	if !ok {
		return
	}
	delete(h.players, token)

	revealed, err := h.room.Leave(playerID)
	if err != nil {
		return
	}

	logf(h.cfg(), "GAMES: Player %s timed out of %s", playerID, h.id)
	h.countReveal(revealed)
	h.broadcastState()
}

func (h *Hub) handleTimeout(round int) {
	advanced, err := h.room.ForceAdvanceRound(round)
	if err != nil {
		logf(h.cfg(), "ERROR: Round %d of %s: %v", round, h.id, err)
		return
	}
	if !advanced {
		return
	}

	logf(h.cfg(), "GAMES: Round %d of %s timed out", round, h.id)
	h.countReveal(true)
	h.broadcastState()
}

func (h *Hub) handleAction(a action) {
	var err error

	switch a.msg.Type {
	case "join":
		err = h.join(a.client, a.msg.Name)
	case "leave":
		err = h.leave(a.client.token)
	case "submit":
		err = h.submit(a.client.token, a.msg.Answer)
	case "start", "advance", "continue", "finish":
		err = h.hostCommand(a.client.token, a.msg.Type)
	case "chat":
		h.chat(a.client.token, a.msg.Text)
		return
	default:
		// ignore unknown types
		return
	}

	if err != nil {
		h.deliver(a.client, ErrorMessage{
			Type:    "error",
			Kind:    game.Kind(err),
			Message: err.Error(),
		})
		return
	}

	h.broadcastState()
}

func (h *Hub) join(c *Client, name string) error {
	if playerID, ok := h.players[c.token]; ok && h.room.Has(playerID) {
		h.deliver(c, SessionInfoMessage{Type: "session_info", RoomID: h.id, PlayerID: playerID})
		return nil
	}

	playerID, err := h.room.Join(name)
	if err != nil {
		return err
	}

	h.players[c.token] = playerID
	h.gm.metrics.players.Inc()
	logf(h.cfg(), "GAMES: Player %q joined %s", strings.TrimSpace(name), h.id)

	for client := range h.clients {
		if client.token == c.token {
			h.deliver(client, SessionInfoMessage{Type: "session_info", RoomID: h.id, PlayerID: playerID})
		}
	}

	return nil
}

func (h *Hub) leave(token string) error {
	playerID, ok := h.players[token]
	if !ok {
		return game.ErrPlayerNotFound
	}
	delete(h.players, token)

	revealed, err := h.room.Leave(playerID)
	if err != nil {
		return err
	}

	logf(h.cfg(), "GAMES: Player %s left %s", playerID, h.id)
	h.countReveal(revealed)

	for client := range h.clients {
		if client.token == token {
			h.deliver(client, SessionInfoMessage{Type: "session_info", RoomID: h.id})
		}
	}

	return nil
}

func (h *Hub) submit(token, answer string) error {
	playerID, ok := h.players[token]
	if !ok {
		return game.ErrPlayerNotFound
	}

	revealed, err := h.room.Submit(playerID, answer)
	if err != nil {
		return err
	}

	h.countReveal(revealed)

	return nil
}

func (h *Hub) hostCommand(token, command string) error {
	playerID, ok := h.players[token]
	if !ok {
		return game.ErrPlayerNotFound
	}
	if !h.room.IsHost(playerID) {
		return game.ErrNotHost
	}

	switch command {
	case "start":
		if err := h.room.StartRound(h.gm.prompts.Next()); err != nil {
			return err
		}
		logf(h.cfg(), "GAMES: Started %s", h.id)
		h.armTimer()

	case "advance":
		advanced, err := h.room.ForceAdvance()
		if err != nil {
			return err
		}
		h.countReveal(advanced)

	case "continue":
		if err := h.room.ContinueOrFinish(game.Continue, h.gm.prompts.Next()); err != nil {
			return err
		}
		h.armTimer()

	case "finish":
		if err := h.room.ContinueOrFinish(game.Finish, ""); err != nil {
			return err
		}
		logf(h.cfg(), "GAMES: Finished %s after %d rounds", h.id, h.room.Round())
	}

	return nil
}

func (h *Hub) chat(token, text string) {
	playerID, ok := h.players[token]
	if !ok {
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}

	var from string
	for _, p := range h.room.View().Players {
		if p.ID == playerID {
			from = p.Name
			break
		}
	}
	if from == "" {
		return
	}

	msg := ChatMessage{Type: "chat", From: from, Text: text}
	for client := range h.clients {
		h.deliver(client, msg)
	}
}

// armTimer schedules a forced reveal of the round now collecting.
func (h *Hub) armTimer() {
	if h.cfg().roundTimeout <= 0 || h.room.Phase() != game.PhaseCollecting {
		return
	}

	if h.timer != nil {
		h.timer.Stop()
	}

	round := h.room.Round()
	h.timer = time.AfterFunc(h.cfg().roundTimeout, func() {
		select {
		case h.timeouts <- round:
		case <-h.done:
		}
	})
}

func (h *Hub) countReveal(revealed bool) {
	if !revealed {
		return
	}

	h.gm.metrics.revealed.Inc()
	logf(h.cfg(), "GAMES: Revealed round %d of %s", h.room.Round(), h.id)
}

func (h *Hub) tokenConnected(token string) bool {
	for client := range h.clients {
		if client.token == token {
			return true
		}
	}

	return false
}

// broadcastState sends the current room snapshot to every client.
func (h *Hub) broadcastState() {
	msg := RoomStateMessage{
		Type:  "room_state",
		State: h.room.View(),
	}

	for client := range h.clients {
		h.deliver(client, msg)
	}
}

// deliver hangs up on clients whose send buffer is full. Their read
// pump then unregisters them.
func (h *Hub) deliver(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		_ = c.conn.Close()
	}
}

func (h *Hub) closeClients() {
	if h.timer != nil {
		h.timer.Stop()
	}

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
		h.gm.metrics.connected.Dec()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "groupthink_id"

func getOrSetToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	token := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return token
}

// GameManager connects the room registry to the hubs serving each room.
type GameManager struct {
	cfg      *Config
	registry *game.Registry
	prompts  lexicon.Provider
	metrics  *metrics

	mu   sync.Mutex
	hubs map[string]*Hub
}

func newGameManager(ctx context.Context, cfg *Config, prompts lexicon.Provider) *GameManager {
	gm := &GameManager{
		cfg:     cfg,
		prompts: prompts,
		hubs:    make(map[string]*Hub),
	}

	gm.registry = game.NewRegistry(game.RegistryOptions{
		Room: game.RoomOptions{
			MinPlayers:  cfg.minPlayers,
			MaxPlayers:  cfg.maxPlayers,
			MaxRounds:   cfg.rounds,
			UniqueNames: cfg.uniqueNames,
			Normalizer:  game.NewNormalizer(cfg.foldPlurals),
		},
		EmptyGrace:  cfg.emptyGrace,
		IdleTimeout: cfg.sessionTimeout,
		OnRemove: func(room *game.Room) {
			gm.closeHub(room.ID())
		},
		Logf: func(format string, args ...any) {
			logf(cfg, format, args...)
		},
	})

	gm.metrics = newMetrics(func() float64 {
		return float64(gm.registry.Len())
	})

	go gm.registry.Run(ctx)

	return gm
}

// getHub returns the hub for a live room, starting it on first use.
func (gm *GameManager) getHub(roomID string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[roomID]; ok {
		return hub, nil
	}

	room, err := gm.registry.Get(roomID)
	if err != nil {
		return nil, err
	}

	hub := newHub(gm, room)
	gm.hubs[roomID] = hub
	go hub.run()

	return hub, nil
}

func (gm *GameManager) closeHub(roomID string) {
	gm.mu.Lock()
	hub, ok := gm.hubs[roomID]
	delete(gm.hubs, roomID)
	gm.mu.Unlock()

	if ok {
		close(hub.done)
	}
}

// WebSocket handler that picks the hub based on :roomid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, err := gm.getHub(ps.ByName("roomid"))
		if err != nil {
			writeJSONError(w, err)
			return
		}

		token := getOrSetToken(w, r)
		if token == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade for %s failed: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:    conn,
			send:    make(chan any, 16),
			token:   token,
			limiter: rate.NewLimiter(rate.Limit(10), 20),
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !c.limiter.Allow() {
			continue
		}

		select {
		case h.actions <- action{client: c, msg: msg}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, err := gm.registry.Get(ps.ByName("roomid")); err != nil {
			writeJSONError(w, err)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:roomid/qr; strip trailing "/qr" to get the room URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// serveState returns the room snapshot as JSON, for clients that poll.
func serveState(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		state, err := gm.registry.View(ps.ByName("roomid"))
		if err != nil {
			writeJSONError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_ = json.NewEncoder(w).Encode(state)
	}
}

// ---- Static file paths ----

//go:embed groupthink/index.html
var indexHTML []byte

//go:embed groupthink/app.css
var groupthinkCSS []byte

//go:embed groupthink/app.js
var groupthinkJS []byte

func getIndexHandler(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if _, err := gm.registry.Get(ps.ByName("roomid")); err != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(newPage("Room not found", "That room does not exist anymore. Start a new game?", cfg.prefix+"/groupthink")))
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetToken(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func getAssetHandler(cfg *Config, contentType string, data []byte) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(data)
	}
}

// redirectNewGame handles GET /path by creating a new room and
// redirecting to /path/:roomid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID, err := gm.registry.CreateRoom()
		if err != nil {
			writeJSONError(w, err)
			return
		}

		http.Redirect(w, r, cfg.prefix+path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

// registerGroupthinkGame sets up routes so that:
//   - $path                  → creates a room and redirects to it (8-char ID)
//   - $path/:roomid          → HTML client
//   - $path/:roomid/ws       → WebSocket for that room
//   - $path/:roomid/state    → JSON snapshot of that room
//   - $path/:roomid/qr       → PNG QR code for that room URL
func registerGroupthinkGame(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, prompts lexicon.Provider) *GameManager {
	gm := newGameManager(ctx, cfg, prompts)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:roomid", getIndexHandler(cfg, gm))

	mux.GET(cfg.prefix+"/assets/groupthink/app.css", getAssetHandler(cfg, "text/css; charset=utf-8", groupthinkCSS))
	mux.GET(cfg.prefix+"/assets/groupthink/app.js", getAssetHandler(cfg, "application/javascript; charset=utf-8", groupthinkJS))

	mux.GET(cfg.prefix+path+"/:roomid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:roomid/state", serveState(cfg, gm))

	mux.GET(cfg.prefix+path+"/:roomid/qr", qrHandler(gm))

	return gm
}
