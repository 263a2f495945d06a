package matchmaking

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
	"github.com/mauv0809/ideal-pong/internal/session"
)

var (
	_ MatchmakingService        = &Service{}
	_ session.CompletionHandler = &Service{}
)

// Options configures the casual matches created by the queue.
type Options struct {
	Config game.Config
	Seed   int64
}

// Service is an in-memory FIFO queue. Two queued humans are paired in
// arrival order; the match itself runs as a casual session.
type Service struct {
	mu      sync.Mutex
	waiting []game.Player

	sessions *session.Manager
	players  players.PlayerStore
	pub      Publisher
	pubsub   pubsub.PubSubClient
	metrics  metrics.MetricsStore
	opts     Options

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(
	sessions *session.Manager,
	playerStore players.PlayerStore,
	pub Publisher,
	pubsub pubsub.PubSubClient,
	metricsStore metrics.MetricsStore,
	opts Options,
) *Service {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Service{
		sessions: sessions,
		players:  playerStore,
		pub:      pub,
		pubsub:   pubsub,
		metrics:  metricsStore,
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}
}

func (s *Service) Queue(p game.Player) (*Pairing, error) {
	if p.IsAI() {
		return nil, ErrInvalidPlayer
	}
	if err := s.checkIdle(p.ID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, w := range s.waiting {
		if w.ID == p.ID {
			s.mu.Unlock()
			return nil, ErrAlreadyQueued
		}
	}
	if len(s.waiting) == 0 {
		s.waiting = append(s.waiting, p)
		s.mu.Unlock()
		log.Info("Player queued", "player", p.ID, "name", p.Name)
		return nil, nil
	}
	opponent := s.waiting[0]
	s.waiting = s.waiting[1:]
	s.mu.Unlock()

	if opponent.Name == p.Name {
		p.Name += duplicateSuffix
		log.Debug("Renamed duplicate display name", "player", p.ID, "name", p.Name)
	}

	pairing := &Pairing{MatchID: uuid.New().String(), Left: opponent, Right: p}
	if err := s.start(pairing, nil); err != nil {
		s.mu.Lock()
		s.waiting = append([]game.Player{opponent}, s.waiting...)
		s.mu.Unlock()
		return nil, err
	}
	return pairing, nil
}

func (s *Service) QueueAI(p game.Player, difficulty ai.Difficulty) (*Pairing, error) {
	if p.IsAI() {
		return nil, ErrInvalidPlayer
	}
	if err := s.checkIdle(p.ID); err != nil {
		return nil, err
	}
	s.Leave(p.ID)

	pairing := &Pairing{MatchID: uuid.New().String(), Left: p, Right: game.AIPlayer()}
	if err := s.start(pairing, ai.New(game.SideRight, difficulty, s.newRand())); err != nil {
		return nil, err
	}
	return pairing, nil
}

func (s *Service) Leave(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiting {
		if w.ID == playerID {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			log.Info("Player left the queue", "player", playerID)
			return true
		}
	}
	return false
}

func (s *Service) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}

func (s *Service) checkIdle(playerID string) error {
	if len(s.sessions.ForPlayer(playerID)) > 0 {
		return ErrAlreadyPlaying
	}
	return nil
}

func (s *Service) start(pairing *Pairing, controller *ai.Controller) error {
	left, right := pairing.Left, pairing.Right
	for _, p := range []game.Player{left, right} {
		if p.IsAI() {
			continue
		}
		if err := s.players.UpsertPlayer(p); err != nil {
			log.Warn("Failed to upsert player", "player", p.ID, "error", err)
		}
	}

	_, err := s.sessions.Create(session.Options{
		ID:         pairing.MatchID,
		Kind:       metrics.KindCasual,
		Config:     s.opts.Config,
		Left:       &left,
		Right:      &right,
		AI:         controller,
		OnComplete: s,
		Rand:       s.newRand(),
	})
	if err != nil {
		return fmt.Errorf("failed to create casual match: %w", err)
	}

	s.notify(left, game.SideLeft, right, pairing.MatchID)
	s.notify(right, game.SideRight, left, pairing.MatchID)
	log.Info("Casual match created", "match", pairing.MatchID, "left", left.Name, "right", right.Name)
	return nil
}

func (s *Service) notify(p game.Player, side game.Side, opponent game.Player, matchID string) {
	if p.IsAI() || s.pub == nil {
		return
	}
	s.pub.Publish(PlayerChannel(p.ID), EventMatchFound, MatchFoundPayload{
		MatchID:  matchID,
		Side:     side.String(),
		Opponent: opponent,
	})
}

func (s *Service) newRand() *rand.Rand {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return rand.New(rand.NewSource(s.rng.Int63()))
}

// MatchCompleted stores a finished casual match and fans the result out.
func (s *Service) MatchCompleted(ctx context.Context, result session.Result) error {
	rec := result.Record()
	if err := s.players.RecordCasualMatch(rec); err != nil {
		return fmt.Errorf("failed to record casual match: %w", err)
	}
	s.metrics.Increment(metrics.KeyCasualMatches)
	if rec.Forfeited {
		s.metrics.Increment(metrics.KeyForfeits)
	}
	msg := pubsub.NewMatchFinishedMessage(rec, metrics.KindCasual)
	if err := s.pubsub.SendMessage(pubsub.EventMatchFinished, msg); err != nil {
		log.Error("Failed to publish match result", "match", rec.ID, "error", err)
	}
	return nil
}
