package pubsub

import (
	"cloud.google.com/go/pubsub"
	"github.com/mauv0809/ideal-pong/internal/players"
)

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	EventMatchFinished       EventType = "match-finished"
	EventTournamentCompleted EventType = "tournament-completed"
)

// MatchFinishedMessage is published once per completed match, casual or tournament.
// Empty player IDs mark AI sides.
type MatchFinishedMessage struct {
	MatchID      string `msgpack:"match_id"`
	Kind         string `msgpack:"kind"`
	TournamentID string `msgpack:"tournament_id,omitempty"`
	LeftID       string `msgpack:"left_id"`
	LeftName     string `msgpack:"left_name"`
	RightID      string `msgpack:"right_id"`
	RightName    string `msgpack:"right_name"`
	LeftScore    int    `msgpack:"left_score"`
	RightScore   int    `msgpack:"right_score"`
	Forfeited    bool   `msgpack:"forfeited"`
	FinishedAt   int64  `msgpack:"finished_at"`
}

// NewMatchFinishedMessage builds the message for a completed match record.
func NewMatchFinishedMessage(rec players.MatchRecord, kind string) MatchFinishedMessage {
	return MatchFinishedMessage{
		MatchID:    rec.ID,
		Kind:       kind,
		LeftID:     rec.Left.ID,
		LeftName:   rec.Left.Name,
		RightID:    rec.Right.ID,
		RightName:  rec.Right.Name,
		LeftScore:  rec.LeftScore,
		RightScore: rec.RightScore,
		Forfeited:  rec.Forfeited,
		FinishedAt: rec.FinishedAt.UnixMilli(),
	}
}

// TournamentCompletedMessage is published when a tournament has a champion.
type TournamentCompletedMessage struct {
	TournamentID string `msgpack:"tournament_id"`
	Name         string `msgpack:"name"`
	WinnerID     string `msgpack:"winner_id"`
	WinnerName   string `msgpack:"winner_name"`
	CompletedAt  int64  `msgpack:"completed_at"`
}
