package main

import (
	"context"
	"flag"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/config"
	"github.com/mauv0809/ideal-pong/internal/database"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/players"
)

type nopPublisher struct{}

func (nopPublisher) Publish(channel, event string, payload any) {}

func main() {
	numMatches := flag.Int("matches", 200, "number of casual matches to insert")
	flag.Parse()

	log.Info("Starting database seeder...")
	cfg := config.Load()

	db, teardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer teardown()

	playerStore := players.New(db)
	dummyPlayers := []game.Player{
		{ID: "player-1", Name: "Seeder Player A"},
		{ID: "player-2", Name: "Seeder Player B"},
		{ID: "player-3", Name: "Seeder Player C"},
		{ID: "player-4", Name: "Seeder Player D"},
	}
	for _, p := range dummyPlayers {
		if err := playerStore.UpsertPlayer(p); err != nil {
			log.Fatalf("Failed to insert dummy player %s: %s", p.Name, err)
		}
	}
	log.Info("Ensured dummy players exist.")

	log.Info("Preparing to insert dummy matches...", "total", *numMatches)
	startTime := time.Now()
	rng := rand.New(rand.NewSource(startTime.UnixNano()))

	for i := 0; i < *numMatches; i++ {
		perm := rng.Perm(len(dummyPlayers))
		left, right := dummyPlayers[perm[0]], dummyPlayers[perm[1]]
		finished := startTime.Add(-time.Duration(rng.Intn(30*24)) * time.Hour)

		rec := players.MatchRecord{
			ID:         uuid.NewString(),
			Left:       left,
			Right:      right,
			StartedAt:  finished.Add(-time.Duration(2+rng.Intn(6)) * time.Minute),
			FinishedAt: finished,
		}
		loser := rng.Intn(cfg.ScoreGoal)
		if rng.Intn(2) == 0 {
			rec.LeftScore, rec.RightScore = cfg.ScoreGoal, loser
		} else {
			rec.LeftScore, rec.RightScore = loser, cfg.ScoreGoal
		}
		if err := playerStore.RecordCasualMatch(rec); err != nil {
			log.Fatalf("Failed to insert match: %s", err)
		}
		if (i+1)%50 == 0 {
			log.Info("Inserted batch", "completed", i+1, "total", *numMatches)
		}
	}
	log.Info("Successfully inserted all dummy matches.", "duration", time.Since(startTime))

	engine := bracket.NewEngine(bracket.NewStore(db), bracket.NewRegistry(), nopPublisher{}, metrics.NewMock())
	t, err := engine.Create(context.Background(), bracket.CreateParams{
		Name:         "Seeded Cup",
		Creator:      dummyPlayers[0],
		ScoreGoal:    cfg.ScoreGoal,
		Participants: dummyPlayers[:3],
	})
	if err != nil {
		log.Fatalf("Failed to create tournament: %s", err)
	}
	log.Info("Created waiting tournament", "id", t.ID, "participants", len(t.Participants))
}
