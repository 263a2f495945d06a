package bracket

import "errors"

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrNameRequired       = errors.New("tournament name is required")
	ErrNodeNotFound       = errors.New("bracket node not found")
	ErrTournamentFull     = errors.New("tournament is full")
	ErrAlreadyJoined      = errors.New("player already joined the tournament")
	ErrNotParticipant     = errors.New("player is not a participant")
	ErrNotCreator         = errors.New("only the tournament creator can do this")
	ErrInvalidStatus      = errors.New("operation not allowed in the current tournament status")
	ErrNoParticipants     = errors.New("tournament has no participants")
	ErrNoFinalNode        = errors.New("bracket has no final node")
	ErrNodeNotDecided     = errors.New("bracket node still has an empty slot")
	ErrTie                = errors.New("a bracket match cannot end in a tie")
	// ErrConflict means a guarded update matched no rows because another
	// writer got there first. Callers skip the operation.
	ErrConflict = errors.New("concurrent bracket update")
)
