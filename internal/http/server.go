package http

import (
	"net/http"

	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/config"
	"github.com/mauv0809/ideal-pong/internal/matchmaking"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
	"github.com/mauv0809/ideal-pong/internal/session"
	"github.com/mauv0809/ideal-pong/internal/tournament"
	"github.com/mauv0809/ideal-pong/internal/ws"
)

func NewServer(
	engine *bracket.Engine,
	tournaments *tournament.Service,
	sessions *session.Manager,
	queue matchmaking.MatchmakingService,
	playerStore players.PlayerStore,
	hub *ws.Hub,
	notifier notifier.Notifier,
	lifetime metrics.MetricsStore,
	metricsHandler http.Handler,
	cfg config.Config,
	pubsub pubsub.PubSubClient,
) *Server {
	server := &Server{
		Engine:         engine,
		Tournaments:    tournaments,
		Sessions:       sessions,
		Queue:          queue,
		Players:        playerStore,
		Hub:            hub,
		Notifier:       notifier,
		Lifetime:       lifetime,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
		pubsub:         pubsub,
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /ws", http.HandlerFunc(s.Hub.HandleWS))
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))

	s.Router.Handle("GET /tournaments", Chain(s.ListTournamentsHandler(), paramsMiddleware))
	s.Router.Handle("POST /tournaments", Chain(s.CreateTournamentHandler(), paramsMiddleware, playerMiddleware))
	s.Router.Handle("GET /tournaments/{id}", Chain(s.GetTournamentHandler(), paramsMiddleware))
	s.Router.Handle("POST /tournaments/{id}/join", Chain(s.JoinTournamentHandler(), paramsMiddleware, playerMiddleware))
	s.Router.Handle("POST /tournaments/{id}/leave", Chain(s.LeaveTournamentHandler(), paramsMiddleware, playerMiddleware))
	s.Router.Handle("POST /tournaments/{id}/start", Chain(s.StartTournamentHandler(), paramsMiddleware, playerMiddleware))
	s.Router.Handle("POST /tournaments/{id}/cancel", Chain(s.CancelTournamentHandler(), paramsMiddleware, playerMiddleware))

	s.Router.Handle("GET /matches", Chain(s.ListMatchesHandler(), paramsMiddleware))
	s.Router.Handle("GET /leaderboard", Chain(s.LeaderboardHandler(), paramsMiddleware))
	s.Router.Handle("GET /players/{id}/stats", Chain(s.PlayerStatsHandler(), paramsMiddleware))

	s.Router.Handle("POST /jobs/check-stalled", Chain(s.CheckStalledHandler(), paramsMiddleware))
	s.Router.Handle("POST /jobs/archive", Chain(s.ArchiveHandler(), paramsMiddleware))
	s.Router.Handle("POST /jobs/leaderboard", Chain(s.PostLeaderboardHandler(), paramsMiddleware))
	s.Router.Handle("POST /pubsub/tournament-completed", Chain(s.TournamentCompletedPushHandler(), paramsMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
