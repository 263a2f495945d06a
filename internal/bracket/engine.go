package bracket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/metrics"
)

// Publisher pushes an event to every subscriber of a named channel.
type Publisher interface {
	Publish(channel, event string, payload any)
}

// Engine owns bracket construction, slot assignment, winner advancement and
// the AI-vs-AI cascade. Every mutation is one store transaction.
type Engine struct {
	store    *Store
	registry *Registry
	pub      Publisher
	metrics  metrics.Metrics
	clock    clockwork.Clock

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Engine)

func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

func NewEngine(store *Store, registry *Registry, pub Publisher, m metrics.Metrics, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: registry,
		pub:      pub,
		metrics:  m,
		clock:    clockwork.NewRealClock(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateParams describes a new tournament. Participants fill first-round slots in order.
type CreateParams struct {
	Name         string
	Creator      game.Player
	ScoreGoal    int
	Participants []game.Player
}

// Create builds the three-round tree and seats the initial participants.
func (e *Engine) Create(ctx context.Context, params CreateParams) (*Tournament, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(params.Participants) > MaxParticipants {
		return nil, ErrTournamentFull
	}
	seen := make(map[string]bool, len(params.Participants))
	for _, p := range params.Participants {
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyJoined, p.ID)
		}
		seen[p.ID] = true
	}
	goal := params.ScoreGoal
	if goal <= 0 {
		goal = game.DefaultConfig().ScoreGoal
	}

	now := e.clock.Now()
	t := &Tournament{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    StatusWaitingPlayers,
		Creator:   params.Creator,
		ScoreGoal: goal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	nodes := buildTree(t.ID, params.Participants)

	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		if err := insertTournament(ctx, tx, t); err != nil {
			return fmt.Errorf("failed to insert tournament: %w", err)
		}
		// Parents first so next_match_id always references an existing row.
		for i := len(nodes) - 1; i >= 0; i-- {
			if err := insertNode(ctx, tx, nodes[i], now); err != nil {
				return fmt.Errorf("failed to insert bracket node: %w", err)
			}
		}
		for _, p := range params.Participants {
			if err := insertParticipant(ctx, tx, t.ID, p, now); err != nil {
				return fmt.Errorf("failed to insert participant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Tournament created", "tournament", t.ID, "name", t.Name, "participants", len(params.Participants))
	return e.refresh(ctx, t.ID)
}

// buildTree returns the nodes ordered by round then position.
func buildTree(tournamentID string, participants []game.Player) []Node {
	var nodes []Node
	ids := make([][]string, Rounds+1)
	for round := FinalRound; round >= 1; round-- {
		count := FirstRoundNodes >> (round - 1)
		ids[round] = make([]string, count)
		for p := range ids[round] {
			ids[round][p] = uuid.NewString()
		}
	}
	for round := 1; round <= Rounds; round++ {
		for p, id := range ids[round] {
			n := Node{ID: id, TournamentID: tournamentID, Round: round, Position: p}
			if round < FinalRound {
				next := ids[round+1][p/2]
				n.NextNodeID = &next
			}
			nodes = append(nodes, n)
		}
	}

	for i, p := range participants {
		n := &nodes[i/2]
		if i%2 == 0 {
			n.Left = ParticipantSlot(p)
		} else {
			n.Right = ParticipantSlot(p)
		}
	}
	return nodes
}

// Join seats the player in the first empty first-round slot, ordered by
// position with left before right.
func (e *Engine) Join(ctx context.Context, tournamentID string, player game.Player) (*Tournament, error) {
	now := e.clock.Now()
	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		status, err := tournamentStatus(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if status != StatusWaitingPlayers {
			return ErrInvalidStatus
		}
		joined, err := isParticipant(ctx, tx, tournamentID, player.ID)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}
		nodes, err := listNodes(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		node, side, ok := firstEmptySlot(nodes)
		if !ok {
			return ErrTournamentFull
		}
		if err := fillSlot(ctx, tx, node.ID, side, ParticipantSlot(player)); err != nil {
			return err
		}
		if err := insertParticipant(ctx, tx, tournamentID, player, now); err != nil {
			return err
		}
		return touchTournament(ctx, tx, tournamentID, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Player joined tournament", "tournament", tournamentID, "player", player.ID)
	t, err := e.refresh(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	e.publish(tournamentID, EventBracketUpdate, t)
	return t, nil
}

func firstEmptySlot(nodes []Node) (Node, game.Side, bool) {
	for _, n := range nodes {
		if n.Round != 1 {
			continue
		}
		if n.Left.IsEmpty() {
			return n, game.SideLeft, true
		}
		if n.Right.IsEmpty() {
			return n, game.SideRight, true
		}
	}
	return Node{}, 0, false
}

// Leave removes the player from every slot they hold. Only possible before start.
func (e *Engine) Leave(ctx context.Context, tournamentID, playerID string) (*Tournament, error) {
	now := e.clock.Now()
	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		status, err := tournamentStatus(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if status != StatusWaitingPlayers {
			return ErrInvalidStatus
		}
		if err := deleteParticipant(ctx, tx, tournamentID, playerID); err != nil {
			return err
		}
		if err := clearPlayerSlots(ctx, tx, tournamentID, playerID); err != nil {
			return err
		}
		return touchTournament(ctx, tx, tournamentID, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Player left tournament", "tournament", tournamentID, "player", playerID)
	t, err := e.refresh(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	e.publish(tournamentID, EventBracketUpdate, t)
	return t, nil
}

func (e *Engine) OccupiedSlots(ctx context.Context, tournamentID string) (int, error) {
	return e.store.OccupiedSlots(ctx, tournamentID)
}

// Start fills empty first-round slots with the AI sentinel, moves the
// tournament to in_progress, runs the AI cascade and returns the ready nodes.
func (e *Engine) Start(ctx context.Context, tournamentID, requesterID string) (*Tournament, []Node, error) {
	now := e.clock.Now()
	var filled int64
	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		t, err := loadTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.Creator.ID != requesterID {
			return ErrNotCreator
		}
		if t.Status != StatusWaitingPlayers {
			return ErrInvalidStatus
		}
		count, err := countParticipants(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoParticipants
		}
		ok, err := hasFinalNode(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoFinalNode
		}
		if filled, err = backfillAI(ctx, tx, tournamentID); err != nil {
			return fmt.Errorf("failed to fill AI slots: %w", err)
		}
		return setStatus(ctx, tx, tournamentID, StatusWaitingPlayers, StatusInProgress, now)
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("Tournament started", "tournament", tournamentID, "aiSlots", filled)

	t, err := e.refresh(ctx, tournamentID)
	if err != nil {
		return nil, nil, err
	}
	e.publish(tournamentID, EventBracketUpdate, t)

	if _, err := e.ResolveAI(ctx, tournamentID); err != nil {
		log.Warn("AI cascade stopped", "tournament", tournamentID, "error", err)
	}
	ready, err := e.ReadyNodes(ctx, tournamentID)
	if err != nil {
		return nil, nil, err
	}
	t, err = e.Snapshot(ctx, tournamentID)
	if err != nil {
		return nil, nil, err
	}
	return t, ready, nil
}

// Cancel abandons a tournament that has not started.
func (e *Engine) Cancel(ctx context.Context, tournamentID, requesterID string) (*Tournament, error) {
	now := e.clock.Now()
	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		t, err := loadTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if t.Creator.ID != requesterID {
			return ErrNotCreator
		}
		if t.Status != StatusWaitingPlayers {
			return ErrInvalidStatus
		}
		return setStatus(ctx, tx, tournamentID, StatusWaitingPlayers, StatusCancelled, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Tournament cancelled", "tournament", tournamentID)
	t, err := e.refresh(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	e.publish(tournamentID, EventBracketUpdate, t)
	return t, nil
}

// Advance records the final score of a node, places the winner in the parent
// slot, runs the AI cascade and reports the nodes that became ready.
func (e *Engine) Advance(ctx context.Context, nodeID string, scores game.Scores, aborted bool) (*AdvanceResult, error) {
	now := e.clock.Now()
	var (
		node      *Node
		winner    Slot
		completed bool
	)
	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		if node, err = getNode(ctx, tx, nodeID); err != nil {
			return err
		}
		if node.Finished() {
			return ErrConflict
		}
		status, err := tournamentStatus(ctx, tx, node.TournamentID)
		if err != nil {
			return err
		}
		if status != StatusInProgress {
			return ErrInvalidStatus
		}
		if !node.Decided() {
			return ErrNodeNotDecided
		}
		if scores.Left == scores.Right {
			return ErrTie
		}
		if err := finishNode(ctx, tx, nodeID, scores, aborted, now); err != nil {
			return err
		}
		winner = node.Left
		if scores.Right > scores.Left {
			winner = node.Right
		}
		completed, err = promote(ctx, tx, *node, winner, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("Bracket node finished", "tournament", node.TournamentID, "node", nodeID,
		"round", node.Round, "left", scores.Left, "right", scores.Right, "aborted", aborted)

	return e.afterFinish(ctx, node.TournamentID, nodeID, winner.Player(), completed)
}

func (e *Engine) afterFinish(ctx context.Context, tournamentID, nodeID string, winner game.Player, completed bool) (*AdvanceResult, error) {
	t, err := e.refresh(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	finished, _ := findNode(t.Nodes, nodeID)
	e.publish(tournamentID, EventMatchComplete, MatchCompletePayload{
		TournamentID: tournamentID,
		Node:         finished,
		Winner:       winner,
	})
	e.publish(tournamentID, EventBracketUpdate, t)
	if completed {
		e.announceCompletion(t)
	}

	cascaded, err := e.ResolveAI(ctx, tournamentID)
	if err != nil {
		log.Warn("AI cascade stopped", "tournament", tournamentID, "error", err)
	}
	ready, err := e.ReadyNodes(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t, err = e.Snapshot(ctx, tournamentID); err != nil {
		return nil, err
	}
	return &AdvanceResult{
		Node:       finished,
		Winner:     winner,
		Tournament: t,
		Completed:  completed || cascaded,
		Ready:      ready,
	}, nil
}

// promote places the winner of a finished node into its parent, or completes
// the tournament when the node is the final.
func promote(ctx context.Context, tx *sql.Tx, node Node, winner Slot, now time.Time) (bool, error) {
	if node.NextNodeID == nil {
		if err := completeTournament(ctx, tx, node.TournamentID, winner.Player(), now); err != nil {
			return false, err
		}
		return true, nil
	}
	parentID := *node.NextNodeID
	children, err := childIDs(ctx, tx, parentID)
	if err != nil {
		return false, err
	}
	if len(children) == 0 {
		return false, fmt.Errorf("%w: %s has no children", ErrNodeNotFound, parentID)
	}
	side := game.SideRight
	if children[0] == node.ID {
		side = game.SideLeft
	}
	if err := fillSlot(ctx, tx, parentID, side, winner); err != nil {
		return false, err
	}
	return false, touchTournament(ctx, tx, node.TournamentID, now)
}

// ResolveAI finishes every AI-vs-AI node with a random winner until none is
// left, re-reading the bracket on each pass. It reports whether the cascade
// completed the tournament.
func (e *Engine) ResolveAI(ctx context.Context, tournamentID string) (bool, error) {
	start := e.clock.Now()
	processed := make(map[string]bool)
	resolved := 0
	completed := false
	defer func() {
		if resolved > 0 {
			e.metrics.ObserveCascadeDuration(e.clock.Since(start).Seconds())
		}
	}()

	for {
		nodes, err := e.store.ListNodes(ctx, tournamentID)
		if err != nil {
			return completed, err
		}
		next, ok := nextAIvsAI(nodes, processed)
		if !ok {
			break
		}
		processed[next.ID] = true

		winner, done, err := e.autoResolve(ctx, next)
		if errors.Is(err, ErrConflict) {
			log.Debug("AI node already resolved", "tournament", tournamentID, "node", next.ID)
			continue
		}
		if err != nil {
			return completed, err
		}
		resolved++
		e.metrics.IncAINodesResolved()

		finished, _ := e.store.GetNode(ctx, next.ID)
		payload := MatchCompletePayload{TournamentID: tournamentID, Winner: winner, AutoResolved: true}
		if finished != nil {
			payload.Node = *finished
		}
		e.publish(tournamentID, EventMatchComplete, payload)

		if done {
			completed = true
			t, err := e.refresh(ctx, tournamentID)
			if err != nil {
				return completed, err
			}
			e.announceCompletion(t)
		}
	}

	if resolved > 0 {
		log.Info("AI cascade resolved nodes", "tournament", tournamentID, "count", resolved)
		t, err := e.refresh(ctx, tournamentID)
		if err != nil {
			return completed, err
		}
		e.publish(tournamentID, EventBracketUpdate, t)
	}
	return completed, nil
}

func nextAIvsAI(nodes []Node, processed map[string]bool) (Node, bool) {
	for _, n := range nodes {
		if !n.Finished() && n.IsAIvsAI() && !processed[n.ID] {
			return n, true
		}
	}
	return Node{}, false
}

// autoResolve synthesizes a score for an AI-vs-AI node: the winner reaches the
// goal and the loser gets a uniform score below it.
func (e *Engine) autoResolve(ctx context.Context, node Node) (game.Player, bool, error) {
	now := e.clock.Now()
	var (
		winner    Slot
		completed bool
	)
	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		t, err := loadTournamentHeader(ctx, tx, node.TournamentID)
		if err != nil {
			return err
		}
		if t.Status != StatusInProgress {
			return ErrInvalidStatus
		}
		scores, leftWins := e.synthesize(t.ScoreGoal)
		winner = node.Right
		if leftWins {
			winner = node.Left
		}
		if err := finishNode(ctx, tx, node.ID, scores, false, now); err != nil {
			return err
		}
		completed, err = promote(ctx, tx, node, winner, now)
		return err
	})
	return winner.Player(), completed, err
}

func (e *Engine) synthesize(goal int) (game.Scores, bool) {
	if goal <= 0 {
		goal = game.DefaultConfig().ScoreGoal
	}
	e.rngMu.Lock()
	defer e.rngMu.Unlock()

	leftWins := e.rng.Intn(2) == 0
	loser := e.rng.Intn(goal)
	if leftWins {
		return game.Scores{Left: goal, Right: loser}, true
	}
	return game.Scores{Left: loser, Right: goal}, false
}

// ReadyNodes returns the nodes that can start a session now. It always reads the store.
func (e *Engine) ReadyNodes(ctx context.Context, tournamentID string) ([]Node, error) {
	t, err := e.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusInProgress {
		return nil, nil
	}
	return readyNodes(t.Nodes), nil
}

func readyNodes(nodes []Node) []Node {
	roundDone := make(map[int]bool, Rounds)
	for round := 1; round <= Rounds; round++ {
		roundDone[round] = true
	}
	for _, n := range nodes {
		if !n.Finished() {
			roundDone[n.Round] = false
		}
	}

	var ready []Node
	for _, n := range nodes {
		if n.Finished() || n.StartedAt != nil || !n.Decided() || !n.HasParticipant() {
			continue
		}
		if n.Round > 1 && !roundDone[n.Round-1] {
			continue
		}
		ready = append(ready, n)
	}
	return ready
}

// MarkStarted stamps started_at on a node. A node already started is a conflict.
func (e *Engine) MarkStarted(ctx context.Context, nodeID string) error {
	var tournamentID string
	err := e.store.withTransaction(ctx, func(tx *sql.Tx) error {
		node, err := getNode(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		tournamentID = node.TournamentID
		return markStarted(ctx, tx, nodeID, e.clock.Now())
	})
	if err != nil {
		return err
	}
	t, err := e.refresh(ctx, tournamentID)
	if err != nil {
		return err
	}
	e.publish(tournamentID, EventBracketUpdate, t)
	return nil
}

func (e *Engine) Node(ctx context.Context, nodeID string) (*Node, error) {
	return e.store.GetNode(ctx, nodeID)
}

// Snapshot returns the cached tournament, loading it from the store on a miss.
func (e *Engine) Snapshot(ctx context.Context, tournamentID string) (*Tournament, error) {
	if t, ok := e.registry.Get(tournamentID); ok {
		return t, nil
	}
	return e.refresh(ctx, tournamentID)
}

func (e *Engine) List(ctx context.Context, statuses ...Status) ([]Tournament, error) {
	return e.store.ListTournaments(ctx, statuses...)
}

// StalledNodes returns the decided, unfinished nodes of in-progress tournaments.
func (e *Engine) StalledNodes(ctx context.Context) ([]Node, error) {
	return e.store.OpenNodes(ctx)
}

// ArchiveExpired evicts settled tournaments older than retention from the registry.
func (e *Engine) ArchiveExpired(ctx context.Context, retention time.Duration) (int, error) {
	ids, err := e.store.ListSettledBefore(ctx, e.clock.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, id := range ids {
		if _, ok := e.registry.Get(id); ok {
			e.registry.Delete(id)
			evicted++
		}
	}
	return evicted, nil
}

func (e *Engine) announceCompletion(t *Tournament) {
	if t.Winner == nil {
		return
	}
	e.metrics.IncTournamentsCompleted()
	log.Info("Tournament completed", "tournament", t.ID, "winner", t.Winner.Name)
	e.publish(t.ID, EventTournamentComplete, TournamentCompletePayload{
		TournamentID: t.ID,
		Name:         t.Name,
		Winner:       *t.Winner,
	})
}

// refresh reloads a tournament from the store into the registry.
func (e *Engine) refresh(ctx context.Context, tournamentID string) (*Tournament, error) {
	t, err := e.store.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	e.registry.Put(t)
	return t, nil
}

func (e *Engine) publish(tournamentID, event string, payload any) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(Channel(tournamentID), event, payload)
}

func findNode(nodes []Node, id string) (Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
