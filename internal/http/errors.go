package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/bracket"
	"github.com/mauv0809/ideal-pong/internal/players"
)

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{bracket.ErrTournamentNotFound, http.StatusNotFound, "tournament_not_found"},
	{bracket.ErrNodeNotFound, http.StatusNotFound, "node_not_found"},
	{players.ErrPlayerNotFound, http.StatusNotFound, "player_not_found"},
	{bracket.ErrNameRequired, http.StatusBadRequest, "name_required"},
	{bracket.ErrNotCreator, http.StatusForbidden, "not_creator"},
	{bracket.ErrTournamentFull, http.StatusConflict, "tournament_full"},
	{bracket.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{bracket.ErrNotParticipant, http.StatusConflict, "not_participant"},
	{bracket.ErrInvalidStatus, http.StatusConflict, "invalid_status"},
	{bracket.ErrNoParticipants, http.StatusConflict, "no_participants"},
	{bracket.ErrConflict, http.StatusConflict, "conflict"},
	{bracket.ErrNoFinalNode, http.StatusInternalServerError, "no_final_node"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "error", err)
	}
}

// writeError maps a domain error to a status and a stable code.
func writeError(w http.ResponseWriter, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			writeJSON(w, e.status, ErrorResponse{Error: err.Error(), Code: e.code})
			return
		}
	}
	log.Error("Request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
}
