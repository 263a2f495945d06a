package session

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/game"
)

// Session owns one match and drives it on a fixed tick. All mutation happens
// on the session goroutine; public methods marshal their work onto it.
type Session struct {
	id      string
	kind    string
	clock   clockwork.Clock
	pub     Publisher
	handler CompletionHandler
	grace   time.Duration
	ai      *ai.Controller
	log     *log.Logger

	cmds     chan func()
	started  chan struct{}
	stopped  chan struct{}
	done     chan struct{}
	snapshot atomic.Pointer[game.State]
	result   atomic.Pointer[Result]

	// Owned by the session goroutine.
	match     *game.Match
	conns     map[string]*connection
	ready     [2]bool
	ticker    clockwork.Ticker
	timers    map[string][]clockwork.Timer
	lastTick  time.Time
	startedAt time.Time
	finished  bool
}

// New creates a session. It does nothing until Run is called.
func New(opts Options) (*Session, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.AI != nil {
		if p := sidePlayer(opts, opts.AI.Side()); p != nil && !p.IsAI() {
			return nil, fmt.Errorf("ai controller assigned to human side %s", opts.AI.Side())
		}
	}

	s := &Session{
		id:      opts.ID,
		kind:    opts.Kind,
		clock:   opts.Clock,
		pub:     opts.Publisher,
		handler: opts.OnComplete,
		grace:   opts.GracePeriod,
		ai:      opts.AI,
		log:     log.With("session", opts.ID),
		cmds:    make(chan func()),
		started: make(chan struct{}),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
		match:   game.NewMatch(opts.Config, opts.Left, opts.Right, opts.Rand),
		conns:   make(map[string]*connection),
		timers:  make(map[string][]clockwork.Timer),
	}
	s.storeSnapshot()
	return s, nil
}

func sidePlayer(opts Options, side game.Side) *game.Player {
	if side == game.SideLeft {
		return opts.Left
	}
	return opts.Right
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Kind() string {
	return s.kind
}

// State returns the latest published snapshot. Safe from any goroutine.
func (s *Session) State() game.State {
	return *s.snapshot.Load()
}

// Done closes once the session has stopped and its completion handler has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the final result once the match has reached a terminal state.
func (s *Session) Result() (Result, bool) {
	r := s.result.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Run starts the session goroutine. Cancelling ctx tears the session down
// without invoking the completion handler.
func (s *Session) Run(ctx context.Context) {
	go s.loop(ctx)
	<-s.started
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.stopped)

	s.ticker = s.clock.NewTicker(TickInterval)
	s.lastTick = s.clock.Now()
	close(s.started)

	for !s.finished {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case fn := <-s.cmds:
			fn()
		case now := <-s.ticker.Chan():
			s.tick(now)
		}
	}
}

// do runs fn on the session goroutine and waits for it. It reports false if
// the session has already stopped.
func (s *Session) do(fn func()) bool {
	reply := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(reply) }:
		<-reply
		return true
	case <-s.stopped:
		return false
	}
}

// Ready marks a player as ready. The match starts once every human side is
// ready and no player is waiting out a disconnect.
func (s *Session) Ready(playerID string) bool {
	var ok bool
	s.do(func() {
		side, found := s.sideOf(playerID)
		if !found || s.finished {
			return
		}
		s.ready[side] = true
		ok = true
		s.startIfReady()
	})
	return ok
}

// startIfReady starts a match that has not begun once every human side is
// ready and nobody is inside a grace period.
func (s *Session) startIfReady() {
	if s.match.Phase() == game.PhaseToStart && s.allReady() && !s.graceActive() {
		s.start()
	}
}

// StartLocal starts the match without waiting for readiness.
func (s *Session) StartLocal() bool {
	var ok bool
	s.do(func() {
		if s.match.Phase() == game.PhaseToStart {
			s.start()
			ok = true
		}
	})
	return ok
}

func (s *Session) allReady() bool {
	st := s.match.Snapshot()
	for _, side := range []game.Side{game.SideLeft, game.SideRight} {
		p := st.Player(side)
		if p == nil || p.IsAI() {
			continue
		}
		if !s.ready[side] {
			return false
		}
	}
	return true
}

func (s *Session) start() {
	now := s.clock.Now()
	if !s.match.Start(now) {
		return
	}
	s.startedAt = now
	s.lastTick = now
	s.storeSnapshot()
	s.log.Info("Match started")
}

// Connect registers a player or spectator. A player with a live disconnect
// deadline is treated as reconnecting. It reports whether p is a player.
func (s *Session) Connect(p game.Player) bool {
	var isPlayer bool
	s.do(func() {
		side, found := s.sideOf(p.ID)
		isPlayer = found
		c, exists := s.conns[p.ID]
		if !exists {
			s.conns[p.ID] = &connection{player: p, isPlayer: found, side: side}
			return
		}
		if c.deadline != nil {
			s.reconnect(c)
		}
	})
	return isPlayer
}

// Disconnect starts the grace period for a player. Spectators are simply dropped.
func (s *Session) Disconnect(playerID string) {
	s.do(func() {
		c, ok := s.conns[playerID]
		if !ok {
			side, found := s.sideOf(playerID)
			if !found {
				return
			}
			st := s.match.Snapshot()
			c = &connection{player: *st.Player(side), isPlayer: true, side: side}
			s.conns[playerID] = c
		}
		if !c.isPlayer {
			delete(s.conns, playerID)
			return
		}
		if s.finished || c.deadline != nil {
			return
		}

		wasGrace := s.graceActive()
		deadline := s.clock.Now().Add(s.grace)
		c.deadline = &deadline
		c.gen++
		if !wasGrace && s.match.Pause() {
			s.storeSnapshot()
		}

		gen := c.gen
		s.track(playerID, s.clock.AfterFunc(s.grace, func() {
			s.post(func() { s.expire(playerID, gen) })
		}))
		s.armWarning(playerID, gen)

		s.log.Info("Player disconnected", "player", playerID, "deadline", deadline)
		s.publish(EventPlayerDisconnected, DisconnectPayload{
			PlayerID:         playerID,
			PlayerName:       c.player.Name,
			Deadline:         deadline.UnixMilli(),
			RemainingSeconds: int(s.grace / time.Second),
		})
	})
}

func (s *Session) reconnect(c *connection) {
	id := c.player.ID
	c.deadline = nil
	c.gen++
	s.stopTimers(id)

	s.log.Info("Player reconnected", "player", id)
	s.publish(EventPlayerReconnected, ReconnectPayload{PlayerID: id, PlayerName: c.player.Name})

	if s.graceActive() {
		return
	}
	if s.match.Resume() {
		s.lastTick = s.clock.Now()
		s.storeSnapshot()
		return
	}
	s.startIfReady()
}

func (s *Session) armWarning(playerID string, gen int) {
	s.track(playerID, s.clock.AfterFunc(warningInterval, func() {
		s.post(func() { s.warn(playerID, gen) })
	}))
}

func (s *Session) warn(playerID string, gen int) {
	c, ok := s.conns[playerID]
	if s.finished || !ok || c.gen != gen || c.deadline == nil {
		return
	}
	remaining := int(math.Ceil(c.deadline.Sub(s.clock.Now()).Seconds()))
	if remaining <= 0 {
		return
	}
	s.publish(EventDisconnectTimer, TimerPayload{PlayerID: playerID, RemainingSeconds: remaining})
	s.armWarning(playerID, gen)
}

// expire forfeits the match for a player whose deadline elapsed. The first
// deadline to fire decides the match.
func (s *Session) expire(playerID string, gen int) {
	c, ok := s.conns[playerID]
	if s.finished || !ok || c.gen != gen || c.deadline == nil {
		return
	}

	goal := s.match.Config().ScoreGoal
	if goal <= 0 {
		goal = 1
	}
	var scores game.Scores
	if c.side == game.SideLeft {
		scores.Right = goal
	} else {
		scores.Left = goal
	}
	s.match.ForceFinish(scores)
	s.storeSnapshot()

	st := s.State()
	forfeited := c.player
	s.log.Warn("Player forfeited after grace period", "player", playerID)
	s.publish(EventGameAborted, AbortPayload{
		Reason:      "forfeit",
		ForfeitedBy: forfeited,
		Winner:      st.Player(c.side.Opponent()),
		State:       st,
	})
	s.finish(true, &forfeited)
}

// Press sets a direction flag for the caller's side. Non-players are rejected.
func (s *Session) Press(playerID string, dir game.Direction) bool {
	return s.input(playerID, func(side game.Side) bool { return s.match.Press(side, dir) })
}

// Release clears a direction flag for the caller's side.
func (s *Session) Release(playerID string, dir game.Direction) bool {
	return s.input(playerID, func(side game.Side) bool { return s.match.Release(side, dir) })
}

// Move applies a discrete paddle move for the caller's side.
func (s *Session) Move(playerID string, delta float64) bool {
	return s.input(playerID, func(side game.Side) bool {
		return s.match.MovePaddle(side, delta, s.clock.Now())
	})
}

func (s *Session) input(playerID string, apply func(game.Side) bool) bool {
	var ok bool
	s.do(func() {
		side, found := s.sideOf(playerID)
		if !found || s.finished {
			s.log.Debug("Rejected input", "player", playerID)
			return
		}
		ok = apply(side)
	})
	return ok
}

// sideOf resolves a human identity to its side. AI sides never match.
func (s *Session) sideOf(playerID string) (game.Side, bool) {
	if playerID == "" {
		return game.SideLeft, false
	}
	st := s.match.Snapshot()
	for _, side := range []game.Side{game.SideLeft, game.SideRight} {
		if p := st.Player(side); p != nil && p.ID == playerID {
			return side, true
		}
	}
	return game.SideLeft, false
}

func (s *Session) tick(now time.Time) {
	elapsed := float64(now.Sub(s.lastTick)) / float64(time.Millisecond)
	s.lastTick = now

	if s.ai != nil {
		st := s.State()
		if in, ok := s.ai.Decide(&st); ok {
			s.match.SetInput(s.ai.Side(), in)
		}
	}
	s.match.Advance(now, elapsed)
	s.storeSnapshot()

	if !s.graceActive() {
		s.publish(EventGameState, s.State())
	}
	if s.match.Phase() == game.PhaseFinished {
		s.finish(false, nil)
	}
}

// finish is the single terminal path. It runs at most once.
func (s *Session) finish(forfeited bool, by *game.Player) {
	if s.finished {
		return
	}
	s.finished = true
	s.stopAll()

	st := s.State()
	if !forfeited {
		var winner *game.Player
		if side, ok := st.Winner(); ok {
			winner = st.Player(side)
		}
		s.publish(EventGameFinished, FinishPayload{Winner: winner, State: st})
	}
	s.log.Info("Match finished", "left", st.Scores.Left, "right", st.Scores.Right, "forfeited", forfeited)

	result := Result{
		MatchID:     s.id,
		Kind:        s.kind,
		State:       st,
		Forfeited:   forfeited,
		ForfeitedBy: by,
		StartedAt:   s.startedAt,
		FinishedAt:  s.clock.Now(),
	}
	s.result.Store(&result)
	go s.complete(result)
}

func (s *Session) complete(result Result) {
	defer close(s.done)
	if s.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Completion handler panicked", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()
	if err := s.handler.MatchCompleted(ctx, result); err != nil {
		s.log.Error("Completion handler failed", "error", err)
	}
}

func (s *Session) shutdown() {
	if s.finished {
		return
	}
	s.finished = true
	s.stopAll()
	s.log.Info("Session shut down before completion")
	close(s.done)
}

// post hands a timer callback to the session goroutine. Dropped once stopped.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.stopped:
	}
}

func (s *Session) track(playerID string, t clockwork.Timer) {
	s.timers[playerID] = append(s.timers[playerID], t)
}

func (s *Session) stopTimers(playerID string) {
	for _, t := range s.timers[playerID] {
		t.Stop()
	}
	delete(s.timers, playerID)
}

func (s *Session) stopAll() {
	s.ticker.Stop()
	for id := range s.timers {
		s.stopTimers(id)
	}
}

func (s *Session) graceActive() bool {
	for _, c := range s.conns {
		if c.deadline != nil {
			return true
		}
	}
	return false
}

func (s *Session) storeSnapshot() {
	st := s.match.Snapshot()
	s.snapshot.Store(&st)
}

func (s *Session) publish(event string, payload any) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(Channel(s.id), event, payload)
}
