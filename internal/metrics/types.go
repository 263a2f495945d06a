package metrics

import "github.com/prometheus/client_golang/prometheus"

// Match kinds used as the "kind" label and as lifetime counter keys.
const (
	KindCasual     = "casual"
	KindTournament = "tournament"
)

// Lifetime counter keys kept in the metrics table.
const (
	KeyCasualMatches        = "casual_matches"
	KeyTournamentMatches    = "tournament_matches"
	KeyForfeits             = "forfeits"
	KeyTournamentsCompleted = "tournaments_completed"
)

// Service holds all the Prometheus metrics for the application.
// By defining them all in one place, we ensure consistency in naming and labeling.
type Service struct {
	SessionsStarted      prometheus.Counter
	ActiveSessions       prometheus.Gauge
	MatchesFinished      *prometheus.CounterVec
	Forfeits             prometheus.Counter
	AINodesResolved      prometheus.Counter
	CascadeDuration      prometheus.Histogram
	TournamentsCompleted prometheus.Counter
	SlackNotifSent       prometheus.Counter
	SlackNotifFailed     prometheus.Counter
	StartupTimeSeconds   prometheus.Gauge
}
