package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/game"
)

const historyLimit = 10

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		resp := HealthResponse{
			Status:    "ok",
			Sessions:  s.Sessions.Len(),
			Waiting:   s.Queue.Waiting(),
			Transport: s.Hub.Stats(),
		}
		lifetime, err := s.Lifetime.GetAll()
		if err != nil {
			log.Warn("Failed to read lifetime counters", "error", err)
		}
		resp.Lifetime = lifetime
		writeJSON(w, http.StatusOK, resp)
	}
}

// ListTournamentsHandler lists tournaments, optionally filtered by a
// comma-separated status query parameter.
func (s *Server) ListTournamentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var statuses []bracket.Status
		for _, st := range strings.Split(r.URL.Query().Get("status"), ",") {
			if st = strings.TrimSpace(st); st != "" {
				statuses = append(statuses, bracket.Status(st))
			}
		}
		tournaments, err := s.Engine.List(r.Context(), statuses...)
		if err != nil {
			writeError(w, err)
			return
		}
		if tournaments == nil {
			tournaments = []bracket.Tournament{}
		}
		writeJSON(w, http.StatusOK, tournaments)
	}
}

// CreateTournamentHandler creates a tournament. The creator takes the first slot.
func (s *Server) CreateTournamentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTournamentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Code: "invalid_body"})
			return
		}
		if req.ScoreGoal <= 0 {
			req.ScoreGoal = s.Cfg.ScoreGoal
		}

		creator := playerFromContext(r)
		s.upsertPlayer(creator)
		t, err := s.Engine.Create(r.Context(), bracket.CreateParams{
			Name:         strings.TrimSpace(req.Name),
			Creator:      creator,
			ScoreGoal:    req.ScoreGoal,
			Participants: []game.Player{creator},
		})
		if err != nil {
			writeError(w, err)
			return
		}
		log.Info("Tournament created", "tournament", t.ID, "name", t.Name, "creator", creator.ID)
		writeJSON(w, http.StatusCreated, t)
	}
}

func (s *Server) GetTournamentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Engine.Snapshot(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) JoinTournamentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := playerFromContext(r)
		s.upsertPlayer(p)
		t, err := s.Engine.Join(r.Context(), r.PathValue("id"), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) LeaveTournamentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Engine.Leave(r.Context(), r.PathValue("id"), playerFromContext(r).ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) StartTournamentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Tournaments.Start(r.Context(), r.PathValue("id"), playerFromContext(r).ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) CancelTournamentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Engine.Cancel(r.Context(), r.PathValue("id"), playerFromContext(r).ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// ListMatchesHandler lists live sessions.
func (s *Server) ListMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live := s.Sessions.List()
		out := make([]MatchSummary, 0, len(live))
		for _, m := range live {
			out = append(out, MatchSummary{ID: m.ID(), Kind: m.Kind(), State: m.State()})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.Players.GetPlayerStats()
		if err != nil {
			writeError(w, err)
			return
		}
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(stats) {
			stats = stats[:limit]
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) PlayerStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		stats, err := s.Players.GetPlayerStatsByID(id)
		if err != nil {
			writeError(w, err)
			return
		}
		history, err := s.Players.GetMatchHistory(id, historyLimit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PlayerStatsResponse{Stats: stats, History: history})
	}
}

func (s *Server) upsertPlayer(p game.Player) {
	if err := s.Players.UpsertPlayer(p); err != nil {
		log.Warn("Failed to upsert player", "player", p.ID, "error", err)
	}
}

// dryRun reports whether notifications for this request should only be logged.
func (s *Server) dryRun(r *http.Request) bool {
	return isDryRunFromContext(r) || !s.Cfg.Slack.Enabled()
}
