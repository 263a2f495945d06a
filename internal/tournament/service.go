package tournament

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
	"github.com/mauv0809/ideal-pong/internal/session"
)

var _ session.CompletionHandler = &Service{}

// DefaultStartTimeout is how long a bracket match may wait for its players to
// ready up before operators are alerted.
const DefaultStartTimeout = 10 * time.Minute

// Options tunes the sessions spawned for bracket nodes.
type Options struct {
	BaseConfig   game.Config
	AIDifficulty ai.Difficulty
	// DryRun logs notifications instead of sending them.
	DryRun       bool
	Seed         int64
	StartTimeout time.Duration
	Clock        clockwork.Clock
}

// Service runs tournament matches as sessions and feeds their results back
// into the bracket.
type Service struct {
	engine   *bracket.Engine
	sessions *session.Manager
	players  players.PlayerStore
	notifier notifier.Notifier
	pubsub   pubsub.PubSubClient
	metrics  metrics.MetricsStore
	opts     Options

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(
	engine *bracket.Engine,
	sessions *session.Manager,
	playerStore players.PlayerStore,
	notifier notifier.Notifier,
	pubsub pubsub.PubSubClient,
	metricsStore metrics.MetricsStore,
	opts Options,
) *Service {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Service{
		engine:   engine,
		sessions: sessions,
		players:  playerStore,
		notifier: notifier,
		pubsub:   pubsub,
		metrics:  metricsStore,
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
}

// Start starts the tournament and spawns a session for every ready node.
func (s *Service) Start(ctx context.Context, tournamentID, requesterID string) (*bracket.Tournament, error) {
	t, ready, err := s.engine.Start(ctx, tournamentID, requesterID)
	if err != nil {
		return nil, err
	}
	s.spawnAll(ctx, t, ready)
	return s.engine.Snapshot(ctx, tournamentID)
}

func (s *Service) spawnAll(ctx context.Context, t *bracket.Tournament, nodes []bracket.Node) {
	for _, n := range nodes {
		if err := s.spawn(ctx, t, n); err != nil {
			log.Error("Failed to start bracket match", "tournament", t.ID, "node", n.ID, "error", err)
		}
	}
}

// spawn claims a ready node and runs its session. A node claimed elsewhere is skipped.
func (s *Service) spawn(ctx context.Context, t *bracket.Tournament, node bracket.Node) error {
	if err := s.engine.MarkStarted(ctx, node.ID); err != nil {
		if errors.Is(err, bracket.ErrConflict) {
			log.Debug("Bracket match already started", "node", node.ID)
			return nil
		}
		return err
	}

	left, right := node.Left.Player(), node.Right.Player()
	cfg := s.opts.BaseConfig
	cfg.ScoreGoal = t.ScoreGoal

	opts := session.Options{
		ID:         node.ID,
		Kind:       metrics.KindTournament,
		Config:     cfg,
		Left:       &left,
		Right:      &right,
		OnComplete: s,
		Rand:       s.newRand(),
	}
	switch {
	case node.Left.IsAI():
		opts.AI = ai.New(game.SideLeft, s.opts.AIDifficulty, s.newRand())
	case node.Right.IsAI():
		opts.AI = ai.New(game.SideRight, s.opts.AIDifficulty, s.newRand())
	}

	if _, err := s.sessions.Create(opts); err != nil {
		if errors.Is(err, session.ErrSessionExists) {
			return nil
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	log.Info("Bracket match started", "tournament", t.ID, "node", node.ID, "round", node.Round,
		"left", left.Name, "right", right.Name)
	return nil
}

func (s *Service) newRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewSource(s.rng.Int63()))
}

// MatchCompleted records the result of a bracket match, advances the winner
// and starts whatever became ready.
func (s *Service) MatchCompleted(ctx context.Context, result session.Result) error {
	node, err := s.engine.Node(ctx, result.MatchID)
	if err != nil {
		return fmt.Errorf("failed to load bracket node: %w", err)
	}
	scores := result.State.Scores
	if scores.Left == scores.Right {
		log.Warn("Bracket match ended in a tie, leaving it for operators", "tournament", node.TournamentID,
			"node", node.ID, "score", scores.Left)
		if err := s.notifier.SendTieAlert(*node, s.opts.DryRun); err != nil {
			log.Error("Failed to send tie alert", "error", err)
		}
		return nil
	}

	res, err := s.engine.Advance(ctx, node.ID, scores, result.Forfeited)
	if errors.Is(err, bracket.ErrConflict) {
		log.Debug("Bracket match already advanced", "node", node.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to advance bracket: %w", err)
	}

	if err := s.players.UpdatePlayerStats(result.Record()); err != nil {
		log.Error("Failed to update player stats", "node", node.ID, "error", err)
	}
	s.metrics.Increment(metrics.KeyTournamentMatches)
	s.sendMatchFinished(node.TournamentID, result)

	s.spawnAll(ctx, res.Tournament, res.Ready)
	if res.Completed {
		s.complete(res.Tournament)
	}
	return nil
}

// complete runs the side effects of a tournament getting its champion.
func (s *Service) complete(t *bracket.Tournament) {
	if t.Winner == nil {
		return
	}
	s.metrics.Increment(metrics.KeyTournamentsCompleted)
	if err := s.players.IncrementTournamentsWon(*t.Winner); err != nil {
		log.Error("Failed to record tournament win", "tournament", t.ID, "error", err)
	}
	if err := s.notifier.SendChampionAnnouncement(t, s.opts.DryRun); err != nil {
		log.Error("Failed to announce champion", "tournament", t.ID, "error", err)
	}

	msg := pubsub.TournamentCompletedMessage{
		TournamentID: t.ID,
		Name:         t.Name,
		WinnerID:     t.Winner.ID,
		WinnerName:   t.Winner.Name,
	}
	if t.CompletedAt != nil {
		msg.CompletedAt = t.CompletedAt.UnixMilli()
	}
	if err := s.pubsub.SendMessage(pubsub.EventTournamentCompleted, msg); err != nil {
		log.Error("Failed to publish tournament completion", "tournament", t.ID, "error", err)
	}
}

func (s *Service) sendMatchFinished(tournamentID string, result session.Result) {
	msg := pubsub.NewMatchFinishedMessage(result.Record(), result.Kind)
	msg.TournamentID = tournamentID
	if err := s.pubsub.SendMessage(pubsub.EventMatchFinished, msg); err != nil {
		log.Error("Failed to publish match result", "match", result.MatchID, "error", err)
	}
}

// CheckStalled resolves leftover AI-vs-AI nodes, restarts ready nodes that
// have no session and reports what is still stuck, including sessions whose
// players never readied up within the start timeout.
func (s *Service) CheckStalled(ctx context.Context) ([]bracket.Node, error) {
	open, err := s.engine.StalledNodes(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, n := range open {
		if seen[n.TournamentID] {
			continue
		}
		seen[n.TournamentID] = true

		completed, err := s.engine.ResolveAI(ctx, n.TournamentID)
		if err != nil {
			log.Warn("AI cascade stopped", "tournament", n.TournamentID, "error", err)
		}
		t, err := s.engine.Snapshot(ctx, n.TournamentID)
		if err != nil {
			log.Warn("Failed to load tournament", "tournament", n.TournamentID, "error", err)
			continue
		}
		if completed {
			s.complete(t)
			continue
		}
		ready, err := s.engine.ReadyNodes(ctx, n.TournamentID)
		if err != nil {
			log.Warn("Failed to list ready nodes", "tournament", n.TournamentID, "error", err)
			continue
		}
		s.spawnAll(ctx, t, ready)
	}

	open, err = s.engine.StalledNodes(ctx)
	if err != nil {
		return nil, err
	}
	var stalled []bracket.Node
	for _, n := range open {
		if n.IsAIvsAI() {
			stalled = append(stalled, n)
			continue
		}
		if n.StartedAt == nil {
			continue
		}
		live, ok := s.sessions.Get(n.ID)
		if !ok {
			stalled = append(stalled, n)
			continue
		}
		if live.State().Phase == game.PhaseToStart && s.opts.Clock.Since(*n.StartedAt) >= s.opts.StartTimeout {
			stalled = append(stalled, n)
		}
	}
	if len(stalled) > 0 {
		log.Warn("Stalled bracket matches found", "count", len(stalled))
		if err := s.notifier.SendStalledNodesAlert(stalled, s.opts.DryRun); err != nil {
			log.Error("Failed to send stalled match alert", "error", err)
		}
	}
	return stalled, nil
}
