package http

import (
	"net/http"

	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/config"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/matchmaking"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
	"github.com/mauv0809/ideal-pong/internal/session"
	"github.com/mauv0809/ideal-pong/internal/tournament"
	"github.com/mauv0809/ideal-pong/internal/ws"
)

type Server struct {
	Engine         *bracket.Engine
	Tournaments    *tournament.Service
	Sessions       *session.Manager
	Queue          matchmaking.MatchmakingService
	Players        players.PlayerStore
	Hub            *ws.Hub
	Notifier       notifier.Notifier
	Lifetime       metrics.MetricsStore
	MetricsHandler http.Handler
	Cfg            config.Config
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
}

type CreateTournamentRequest struct {
	Name      string `json:"name"`
	ScoreGoal int    `json:"scoreGoal"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Sessions  int            `json:"sessions"`
	Waiting   int            `json:"waiting"`
	Transport ws.HubStats    `json:"transport"`
	Lifetime  map[string]int `json:"lifetime,omitempty"`
}

type MatchSummary struct {
	ID    string     `json:"id"`
	Kind  string     `json:"kind"`
	State game.State `json:"state"`
}

type PlayerStatsResponse struct {
	Stats   *players.PlayerStats  `json:"stats"`
	History []players.MatchRecord `json:"history"`
}

type StalledResponse struct {
	Stalled []bracket.Node `json:"stalled"`
}

type ArchiveResponse struct {
	Archived int `json:"archived"`
}

// pushRequest is the envelope of a Pub/Sub push delivery.
type pushRequest struct {
	Subscription string `json:"subscription"`
	Message      struct {
		Data string `json:"data"`
	} `json:"message"`
}
