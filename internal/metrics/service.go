package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pong_sessions_started_total",
			Help: "The total number of match sessions created.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pong_sessions_active",
			Help: "The number of match sessions currently running.",
		}),
		MatchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pong_matches_finished_total",
			Help: "The total number of matches that reached a terminal state.",
		}, []string{"kind"}),
		Forfeits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pong_forfeits_total",
			Help: "The total number of matches ended by a disconnect deadline.",
		}),
		AINodesResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pong_bracket_ai_nodes_resolved_total",
			Help: "The total number of AI-vs-AI bracket nodes resolved automatically.",
		}),
		CascadeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pong_bracket_cascade_duration_seconds",
			Help:    "The duration of a bracket AI resolution cascade.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		TournamentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pong_tournaments_completed_total",
			Help: "The total number of tournaments that produced a champion.",
		}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pong_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pong_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pong_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.SessionsStarted,
		s.ActiveSessions,
		s.MatchesFinished,
		s.Forfeits,
		s.AINodesResolved,
		s.CascadeDuration,
		s.TournamentsCompleted,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncSessionsStarted() {
	s.SessionsStarted.Inc()
}

func (s *Service) IncActiveSessions() {
	s.ActiveSessions.Inc()
}

func (s *Service) DecActiveSessions() {
	s.ActiveSessions.Dec()
}

func (s *Service) IncMatchesFinished(kind string) {
	s.MatchesFinished.WithLabelValues(kind).Inc()
}

func (s *Service) IncForfeits() {
	s.Forfeits.Inc()
}

func (s *Service) IncAINodesResolved() {
	s.AINodesResolved.Inc()
}

func (s *Service) ObserveCascadeDuration(duration float64) {
	s.CascadeDuration.Observe(duration)
}

func (s *Service) IncTournamentsCompleted() {
	s.TournamentsCompleted.Inc()
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
