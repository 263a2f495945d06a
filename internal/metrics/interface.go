package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncSessionsStarted()
	IncActiveSessions()
	DecActiveSessions()
	IncMatchesFinished(kind string)
	IncForfeits()
	IncAINodesResolved()
	ObserveCascadeDuration(duration float64)
	IncTournamentsCompleted()
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}

// MetricsStore persists lifetime counters that survive restarts.
type MetricsStore interface {
	Increment(key string)
	GetAll() (map[string]int, error)
}
