package http

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/pubsub"
)

// CheckStalledHandler runs the bracket health check on demand.
func (s *Server) CheckStalledHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stalled, err := s.Tournaments.CheckStalled(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if stalled == nil {
			stalled = []bracket.Node{}
		}
		writeJSON(w, http.StatusOK, StalledResponse{Stalled: stalled})
	}
}

func (s *Server) ArchiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.Engine.ArchiveExpired(r.Context(), s.Cfg.TournamentRetention)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ArchiveResponse{Archived: n})
	}
}

func (s *Server) PostLeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.postLeaderboard(r); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) postLeaderboard(r *http.Request) error {
	stats, err := s.Players.GetPlayerStats()
	if err != nil {
		return err
	}
	return s.Notifier.SendLeaderboard(stats, s.dryRun(r))
}

// TournamentCompletedPushHandler receives tournament-completed events from a
// Pub/Sub push subscription and refreshes the posted leaderboard.
func (s *Server) TournamentCompletedPushHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		log.Debug("Received tournament completed message", "body", string(bodyBytes))

		var push pushRequest
		if err := json.Unmarshal(bodyBytes, &push); err != nil {
			log.Error("Failed to unmarshal wrapper JSON", "error", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		rawData, err := base64.StdEncoding.DecodeString(push.Message.Data)
		if err != nil {
			log.Error("Failed to decode base64 data", "error", err)
			http.Error(w, "Invalid base64 data", http.StatusBadRequest)
			return
		}

		var msg pubsub.TournamentCompletedMessage
		if err := s.pubsub.ProcessMessage(rawData, &msg); err != nil {
			http.Error(w, "Invalid message payload", http.StatusBadRequest)
			return
		}
		log.Info("Tournament completed", "tournament", msg.TournamentID, "winner", msg.WinnerName)

		if err := s.postLeaderboard(r); err != nil {
			log.Error("Failed to post leaderboard", "tournament", msg.TournamentID, "error", err)
			http.Error(w, "Failed to post leaderboard", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	}
}
