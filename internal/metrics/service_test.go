package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRecordsSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc := NewService(reg)

	svc.IncSessionsStarted()
	svc.IncActiveSessions()
	svc.IncActiveSessions()
	svc.DecActiveSessions()
	svc.IncMatchesFinished(KindTournament)
	svc.IncMatchesFinished(KindTournament)
	svc.IncMatchesFinished(KindCasual)
	svc.IncAINodesResolved()

	rec := httptest.NewRecorder()
	NewMetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "pong_sessions_started_total 1")
	assert.Contains(t, out, "pong_sessions_active 1")
	assert.Contains(t, out, `pong_matches_finished_total{kind="tournament"} 2`)
	assert.Contains(t, out, `pong_matches_finished_total{kind="casual"} 1`)
	assert.Contains(t, out, "pong_bracket_ai_nodes_resolved_total 1")
}
