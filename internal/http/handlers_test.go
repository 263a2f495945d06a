package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mauv0809/ideal-pong/internal/ai"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/config"
	"github.com/mauv0809/ideal-pong/internal/database"
	"github.com/mauv0809/ideal-pong/internal/game"
	"github.com/mauv0809/ideal-pong/internal/matchmaking"
	"github.com/mauv0809/ideal-pong/internal/metrics"
	"github.com/mauv0809/ideal-pong/internal/notifier"
	"github.com/mauv0809/ideal-pong/internal/players"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
	"github.com/mauv0809/ideal-pong/internal/session"
	"github.com/mauv0809/ideal-pong/internal/tournament"
	"github.com/mauv0809/ideal-pong/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	alice = game.Player{ID: "p1", Name: "Alice"}
	bob   = game.Player{ID: "p2", Name: "Bob"}
)

type testServer struct {
	*Server
	players  *players.MockStore
	notifier *notifier.Mock
	pubsub   *pubsub.MockPubSubClient
	lifetime *metrics.StoreMock
}

// setupTestServer initializes a server with an in-memory database and mock clients.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(teardown)

	ts := &testServer{
		players:  players.NewMock(),
		notifier: notifier.NewMock(),
		pubsub:   pubsub.NewMock(),
		lifetime: metrics.NewStoreMock(),
	}
	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	clock := clockwork.NewFakeClock()

	hub := ws.NewHub(nil, nil, clock)
	engine := bracket.NewEngine(bracket.NewStore(db), bracket.NewRegistry(), hub, metricsSvc)
	sessions := session.NewManager(hub, metricsSvc, clock)
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })
	queue := matchmaking.NewMock()
	hub.Bind(sessions, queue)

	tournaments := tournament.New(engine, sessions, ts.players, ts.notifier, ts.pubsub, ts.lifetime, tournament.Options{
		BaseConfig:   game.DefaultConfig(),
		AIDifficulty: ai.Medium,
		DryRun:       true,
		Seed:         1,
	})
	cfg := config.Config{ScoreGoal: 3}

	ts.Server = NewServer(engine, tournaments, sessions, queue, ts.players, hub, ts.notifier, ts.lifetime,
		metrics.NewMetricsHandler(reg), cfg, ts.pubsub)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, as *game.Player, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if as != nil {
		req.Header.Set(headerPlayerID, as.ID)
		req.Header.Set(headerPlayerName, as.Name)
	}
	rr := httptest.NewRecorder()
	ts.Router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, rr.Body.String())
	assert.Equal(t, code, decode[ErrorResponse](t, rr).Code)
}

func TestHealthCheckHandler(t *testing.T) {
	ts := setupTestServer(t)
	ts.lifetime.Increment(metrics.KeyCasualMatches)

	rr := ts.do(t, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	health := decode[HealthResponse](t, rr)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Sessions)
	assert.Equal(t, 1, health.Lifetime[metrics.KeyCasualMatches])
}

func TestMetricsHandler(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.do(t, "GET", "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTournamentLifecycle(t *testing.T) {
	ts := setupTestServer(t)

	rr := ts.do(t, "POST", "/tournaments", nil, CreateTournamentRequest{Name: "Friday Cup"})
	assertError(t, rr, http.StatusUnauthorized, "missing_identity")

	rr = ts.do(t, "POST", "/tournaments", &alice, CreateTournamentRequest{Name: "Friday Cup"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[bracket.Tournament](t, rr)
	assert.Equal(t, bracket.StatusWaitingPlayers, created.Status)
	assert.Equal(t, 3, created.ScoreGoal, "falls back to the configured goal")
	require.Len(t, created.Participants, 1)
	assert.Equal(t, alice.ID, created.Participants[0].PlayerID)
	assert.Contains(t, ts.players.UpsertPlayerCalls, alice)

	path := "/tournaments/" + created.ID
	rr = ts.do(t, "POST", path+"/join", &bob, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode[bracket.Tournament](t, rr).Participants, 2)

	assertError(t, ts.do(t, "POST", path+"/join", &bob, nil), http.StatusConflict, "already_joined")

	rr = ts.do(t, "GET", "/tournaments?status=waiting_players", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]bracket.Tournament](t, rr), 1)

	rr = ts.do(t, "GET", "/tournaments?status=completed", nil, nil)
	assert.Empty(t, decode[[]bracket.Tournament](t, rr))

	assertError(t, ts.do(t, "POST", path+"/start", &bob, nil), http.StatusForbidden, "not_creator")

	rr = ts.do(t, "POST", path+"/start", &alice, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	started := decode[bracket.Tournament](t, rr)
	assert.Equal(t, bracket.StatusInProgress, started.Status)
	assert.Len(t, started.Nodes, 7)

	assertError(t, ts.do(t, "POST", path+"/leave", &bob, nil), http.StatusConflict, "invalid_status")

	rr = ts.do(t, "GET", "/matches", nil, nil)
	matches := decode[[]MatchSummary](t, rr)
	require.Len(t, matches, 1)
	assert.Equal(t, metrics.KindTournament, matches[0].Kind)

	rr = ts.do(t, "GET", path, nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, bracket.StatusInProgress, decode[bracket.Tournament](t, rr).Status)
}

func TestLeaveAndCancel(t *testing.T) {
	ts := setupTestServer(t)
	rr := ts.do(t, "POST", "/tournaments", &alice, CreateTournamentRequest{Name: "Cup", ScoreGoal: 7})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[bracket.Tournament](t, rr)
	assert.Equal(t, 7, created.ScoreGoal)
	path := "/tournaments/" + created.ID

	assertError(t, ts.do(t, "POST", path+"/leave", &bob, nil), http.StatusConflict, "not_participant")
	ts.do(t, "POST", path+"/join", &bob, nil)
	rr = ts.do(t, "POST", path+"/leave", &bob, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, decode[bracket.Tournament](t, rr).Participants, 1)

	assertError(t, ts.do(t, "POST", path+"/cancel", &bob, nil), http.StatusForbidden, "not_creator")
	rr = ts.do(t, "POST", path+"/cancel", &alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, bracket.StatusCancelled, decode[bracket.Tournament](t, rr).Status)

	assertError(t, ts.do(t, "POST", path+"/start", &alice, nil), http.StatusConflict, "invalid_status")
}

func TestCreateTournamentValidation(t *testing.T) {
	ts := setupTestServer(t)

	assertError(t, ts.do(t, "POST", "/tournaments", &alice, CreateTournamentRequest{Name: "  "}),
		http.StatusBadRequest, "name_required")

	req := httptest.NewRequest("POST", "/tournaments", bytes.NewBufferString("{"))
	req.Header.Set(headerPlayerID, alice.ID)
	rr := httptest.NewRecorder()
	ts.Router.ServeHTTP(rr, req)
	assertError(t, rr, http.StatusBadRequest, "invalid_body")

	assertError(t, ts.do(t, "GET", "/tournaments/missing", nil, nil), http.StatusNotFound, "tournament_not_found")
	assertError(t, ts.do(t, "POST", "/tournaments/missing/join", &bob, nil), http.StatusNotFound, "tournament_not_found")
}

func TestLeaderboardHandler(t *testing.T) {
	ts := setupTestServer(t)
	ts.players.GetPlayerStatsFunc = func() ([]players.PlayerStats, error) {
		return []players.PlayerStats{
			{PlayerID: "p1", PlayerName: "Alice", MatchesWon: 3},
			{PlayerID: "p2", PlayerName: "Bob", MatchesWon: 1},
		}, nil
	}

	rr := ts.do(t, "GET", "/leaderboard", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]players.PlayerStats](t, rr), 2)

	rr = ts.do(t, "GET", "/leaderboard?limit=1", nil, nil)
	stats := decode[[]players.PlayerStats](t, rr)
	require.Len(t, stats, 1)
	assert.Equal(t, "Alice", stats[0].PlayerName)
}

func TestPlayerStatsHandler(t *testing.T) {
	ts := setupTestServer(t)
	assertError(t, ts.do(t, "GET", "/players/p1/stats", nil, nil), http.StatusNotFound, "player_not_found")

	ts.players.GetPlayerStatsByIDFunc = func(id string) (*players.PlayerStats, error) {
		return &players.PlayerStats{PlayerID: id, PlayerName: "Alice", MatchesPlayed: 2}, nil
	}
	ts.players.GetMatchHistoryFunc = func(id string, limit int) ([]players.MatchRecord, error) {
		assert.Equal(t, historyLimit, limit)
		return []players.MatchRecord{{ID: "m1", Left: alice, Right: bob, LeftScore: 5, RightScore: 2}}, nil
	}

	rr := ts.do(t, "GET", "/players/p1/stats", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[PlayerStatsResponse](t, rr)
	assert.Equal(t, 2, resp.Stats.MatchesPlayed)
	require.Len(t, resp.History, 1)
	assert.Equal(t, "m1", resp.History[0].ID)
}

func TestJobHandlers(t *testing.T) {
	ts := setupTestServer(t)

	rr := ts.do(t, "POST", "/jobs/check-stalled", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[StalledResponse](t, rr).Stalled)

	rr = ts.do(t, "POST", "/jobs/archive", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[ArchiveResponse](t, rr).Archived)

	rr = ts.do(t, "POST", "/jobs/leaderboard?dry_run=true", nil, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Len(t, ts.notifier.Leaderboards(), 1)
}

func TestTournamentCompletedPushHandler(t *testing.T) {
	ts := setupTestServer(t)
	ts.pubsub.ProcessMessageFunc = func(data []byte, v any) error {
		return msgpack.Unmarshal(data, v)
	}

	data, err := msgpack.Marshal(pubsub.TournamentCompletedMessage{TournamentID: "t1", WinnerName: "Alice"})
	require.NoError(t, err)
	body := map[string]any{
		"subscription": "projects/p/subscriptions/leaderboard",
		"message":      map[string]string{"data": base64.StdEncoding.EncodeToString(data)},
	}

	rr := ts.do(t, "POST", "/pubsub/tournament-completed", nil, body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Len(t, ts.notifier.Leaderboards(), 1)
	require.Len(t, ts.pubsub.ProcessMessageCalls, 1)

	rr = ts.do(t, "POST", "/pubsub/tournament-completed", nil, map[string]any{
		"message": map[string]string{"data": "!!not-base64"},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
