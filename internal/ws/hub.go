package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/matchmaking"
	"github.com/mauv0809/ideal-pong/internal/session"
)

const (
	readLimit     = 4096
	maxNameRunes  = 24
	defaultName   = "Player"
	guestIDPrefix = "guest-"
)

var (
	_ session.Publisher     = &Hub{}
	_ bracket.Publisher     = &Hub{}
	_ matchmaking.Publisher = &Hub{}
)

// HubStats holds live transport counters.
type HubStats struct {
	Connections      int    `json:"connections"`
	Channels         int    `json:"channels"`
	TotalConnections uint64 `json:"totalConnections"`
}

// Hub fans events out to connections subscribed to named channels and routes
// client messages to sessions and the matchmaking queue.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Conn]struct{}
	conns    map[*Conn]struct{}

	sessions *session.Manager
	queue    matchmaking.MatchmakingService

	limiter          *IPRateLimiter
	originPatterns   []string
	clock            clockwork.Clock
	totalConnections atomic.Uint64
}

func NewHub(limiter *IPRateLimiter, originPatterns []string, clock clockwork.Clock) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		channels:       make(map[string]map[*Conn]struct{}),
		conns:          make(map[*Conn]struct{}),
		limiter:        limiter,
		originPatterns: originPatterns,
		clock:          clock,
	}
}

// Bind attaches the session registry and queue. The hub is created first
// because both publish through it.
func (h *Hub) Bind(sessions *session.Manager, queue matchmaking.MatchmakingService) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = sessions
	h.queue = queue
}

// Publish sends event to every subscriber of channel. The frame is encoded once.
func (h *Hub) Publish(channel, event string, payload any) {
	msg, err := NewMessage(MsgEvent, channel, event, payload)
	if err != nil {
		log.Error("Failed to encode event", "channel", channel, "event", event, "error", err)
		return
	}
	data, err := Encode(msg)
	if err != nil {
		log.Error("Failed to encode event", "channel", channel, "event", event, "error", err)
		return
	}

	h.mu.RLock()
	subs := make([]*Conn, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		c.sendRaw(data)
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		Connections:      len(h.conns),
		Channels:         len(h.channels),
		TotalConnections: h.totalConnections.Load(),
	}
}

// HandleWS upgrades the request and serves the connection until it closes.
// Identity comes from the id and name query parameters; a missing id gets a
// guest identity.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := RealIP(r)
	if h.limiter != nil && !h.limiter.ConnectAllowed(ip) {
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	defer func() {
		if h.limiter != nil {
			h.limiter.Disconnect(ip)
		}
	}()

	opts := &websocket.AcceptOptions{}
	if len(h.originPatterns) > 0 {
		opts.OriginPatterns = h.originPatterns
	}
	wsConn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Warn("WebSocket accept failed", "ip", ip, "error", err)
		return
	}
	wsConn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := NewConn(wsConn, identify(r), ip, h.limiter)
	h.register(conn)
	defer h.unregister(conn)
	log.Info("Connection opened", "player", conn.Player.ID, "name", conn.Player.Name, "ip", ip)

	go conn.WriteLoop(ctx)
	h.join(conn, matchmaking.PlayerChannel(conn.Player.ID))
	h.reply(conn, "", EventWelcome, WelcomePayload{PlayerID: conn.Player.ID, PlayerName: conn.Player.Name})

	for msg := range conn.ReadLoop(ctx) {
		h.handle(conn, msg)
	}
	log.Info("Connection closed", "player", conn.Player.ID)
}

func identify(r *http.Request) game.Player {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	if id == "" {
		id = strings.TrimSpace(r.Header.Get("X-Player-ID"))
	}
	if id == "" {
		id = guestIDPrefix + uuid.New().String()
	}
	name := q.Get("name")
	if name == "" {
		name = r.Header.Get("X-Player-Name")
	}
	return game.Player{ID: id, Name: sanitizeName(name)}
}

// sanitizeName keeps letters, digits, spaces, underscores and dashes and
// bounds the result to 2..maxNameRunes runes.
func sanitizeName(raw string) string {
	if !utf8.ValidString(raw) {
		return defaultName
	}
	cleaned := make([]rune, 0, len(raw))
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) < 2 {
		return defaultName
	}
	if len(cleaned) > maxNameRunes {
		cleaned = cleaned[:maxNameRunes]
	}
	return string(cleaned)
}

func (h *Hub) register(c *Conn) {
	h.totalConnections.Add(1)
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

// unregister drops every subscription of c. Leaving a match channel starts
// the player's grace period unless another of their connections still
// watches it.
func (h *Hub) unregister(c *Conn) {
	c.Close()

	h.mu.Lock()
	delete(h.conns, c)
	channels := c.Subscriptions()
	for _, ch := range channels {
		h.removeLocked(ch, c)
	}
	stillConnected := h.playerConnectedLocked(c.Player.ID)
	queue := h.queue
	h.mu.Unlock()

	for _, ch := range channels {
		h.leaveMatch(c, ch)
	}
	if !stillConnected && queue != nil {
		queue.Leave(c.Player.ID)
	}
}

func (h *Hub) join(c *Conn, channel string) bool {
	if !c.subscribe(channel) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Conn]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	return true
}

func (h *Hub) leave(c *Conn, channel string) bool {
	if !c.unsubscribe(channel) {
		return false
	}
	h.mu.Lock()
	h.removeLocked(channel, c)
	h.mu.Unlock()
	return true
}

func (h *Hub) removeLocked(channel string, c *Conn) {
	subs := h.channels[channel]
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) playerConnectedLocked(playerID string) bool {
	for c := range h.conns {
		if c.Player.ID == playerID {
			return true
		}
	}
	return false
}

func (h *Hub) watchingLocked(channel, playerID string) bool {
	for c := range h.channels[channel] {
		if c.Player.ID == playerID {
			return true
		}
	}
	return false
}

func (h *Hub) session(matchID string) (*session.Session, bool) {
	h.mu.RLock()
	sessions := h.sessions
	h.mu.RUnlock()
	if sessions == nil {
		return nil, false
	}
	return sessions.Get(matchID)
}

func (h *Hub) leaveMatch(c *Conn, channel string) {
	id, ok := matchID(channel)
	if !ok {
		return
	}
	h.mu.RLock()
	watching := h.watchingLocked(channel, c.Player.ID)
	h.mu.RUnlock()
	if watching {
		return
	}
	if s, ok := h.session(id); ok {
		s.Disconnect(c.Player.ID)
	}
}

func matchID(channel string) (string, bool) {
	return strings.CutPrefix(channel, session.Channel(""))
}

func (h *Hub) handle(c *Conn, msg Message) {
	switch msg.Type {
	case MsgSubscribe:
		var p SubscribePayload
		if !h.decode(c, msg, &p) {
			return
		}
		h.subscribe(c, p.Channel)
	case MsgUnsubscribe:
		var p SubscribePayload
		if !h.decode(c, msg, &p) {
			return
		}
		if h.leave(c, p.Channel) {
			h.leaveMatch(c, p.Channel)
		}
		h.reply(c, p.Channel, EventUnsubscribed, nil)
	case MsgQueue:
		h.enqueue(c)
	case MsgQueueAI:
		var p QueueAIPayload
		if !h.decode(c, msg, &p) {
			return
		}
		h.enqueueAI(c, ai.ParseDifficulty(p.Difficulty))
	case MsgLeaveQueue:
		if q := h.matchmaking(); q != nil {
			q.Leave(c.Player.ID)
		}
		h.reply(c, "", EventLeftQueue, nil)
	case MsgReady:
		var p MatchPayload
		if !h.decode(c, msg, &p) {
			return
		}
		if s, ok := h.session(p.MatchID); ok {
			s.Ready(c.Player.ID)
		}
	case MsgPress, MsgRelease:
		var p InputPayload
		if !h.decode(c, msg, &p) {
			return
		}
		dir := game.Direction(p.Direction)
		if dir != game.DirUp && dir != game.DirDown {
			h.fail(c, msg.Type, "unknown direction")
			return
		}
		if s, ok := h.session(p.MatchID); ok {
			if msg.Type == MsgPress {
				s.Press(c.Player.ID, dir)
			} else {
				s.Release(c.Player.ID, dir)
			}
		}
	case MsgMove:
		var p MovePayload
		if !h.decode(c, msg, &p) {
			return
		}
		if s, ok := h.session(p.MatchID); ok {
			s.Move(c.Player.ID, p.Delta)
		}
	case MsgPing:
		var p PingPayload
		_ = json.Unmarshal(msg.Payload, &p)
		out, _ := NewMessage(MsgPong, "", "", PongPayload{ClientTime: p.ClientTime, ServerTime: h.clock.Now().UnixMilli()})
		c.Send(out)
	default:
		h.fail(c, msg.Type, "unknown message type")
	}
}

// subscribe validates and joins a channel. Joining a match channel registers
// the caller with the session and sends the current state.
func (h *Hub) subscribe(c *Conn, channel string) {
	switch {
	case strings.HasPrefix(channel, matchmaking.PlayerChannel("")):
		if channel != matchmaking.PlayerChannel(c.Player.ID) {
			h.fail(c, MsgSubscribe, "cannot subscribe to another player's channel")
			return
		}
	case strings.HasPrefix(channel, bracket.Channel("")):
	default:
		id, ok := matchID(channel)
		if !ok || id == "" {
			h.fail(c, MsgSubscribe, "unknown channel")
			return
		}
		s, ok := h.session(id)
		if !ok {
			h.fail(c, MsgSubscribe, session.ErrSessionNotFound.Error())
			return
		}
		h.join(c, channel)
		s.Connect(c.Player)
		h.reply(c, channel, EventSubscribed, nil)
		h.reply(c, channel, session.EventGameState, s.State())
		return
	}
	h.join(c, channel)
	h.reply(c, channel, EventSubscribed, nil)
}

func (h *Hub) matchmaking() matchmaking.MatchmakingService {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.queue
}

func (h *Hub) enqueue(c *Conn) {
	q := h.matchmaking()
	if q == nil {
		h.fail(c, MsgQueue, "matchmaking unavailable")
		return
	}
	pairing, err := q.Queue(c.Player)
	if err != nil {
		h.fail(c, MsgQueue, err.Error())
		return
	}
	if pairing == nil {
		h.reply(c, "", EventQueued, QueuedPayload{Waiting: q.Waiting()})
	}
}

func (h *Hub) enqueueAI(c *Conn, difficulty ai.Difficulty) {
	q := h.matchmaking()
	if q == nil {
		h.fail(c, MsgQueueAI, "matchmaking unavailable")
		return
	}
	if _, err := q.QueueAI(c.Player, difficulty); err != nil {
		h.fail(c, MsgQueueAI, err.Error())
	}
}

func (h *Hub) decode(c *Conn, msg Message, v any) bool {
	if len(msg.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		h.fail(c, msg.Type, "invalid payload")
		return false
	}
	return true
}

func (h *Hub) reply(c *Conn, channel, event string, payload any) {
	msg, err := NewMessage(MsgEvent, channel, event, payload)
	if err != nil {
		log.Error("Failed to encode reply", "event", event, "error", err)
		return
	}
	c.Send(msg)
}

func (h *Hub) fail(c *Conn, request, reason string) {
	log.Debug("Rejected client message", "player", c.Player.ID, "type", request, "reason", reason)
	msg, _ := NewMessage(MsgError, "", "", ErrorPayload{Request: request, Error: reason})
	c.Send(msg)
}
