package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/league-engine/repositories"
)

// Errors shared by the services and the HTTP error mapping.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrValidationFailed   = errors.New("validation failed")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Progression
	ErrNoFormat           = errors.New("round has no format attached")
	ErrAlreadyGenerated   = errors.New("round matches are already generated")
	ErrInsufficientTeams  = errors.New("not enough eligible teams to generate the round")
	ErrMatchesNotFinished = errors.New("round still has open or tied matches")
	ErrRoundNotGenerated  = errors.New("round matches have not been generated")
	ErrRoundClosed        = errors.New("round is finished, cancelled or postponed")
	ErrDownstreamPlayed   = errors.New("a downstream match fed by this round is already played")
	ErrLockTimeout        = errors.New("timed out waiting for the category lock")

	// Matches
	ErrMatchNotEditable = errors.New("match cannot take a result")
	ErrInvalidScore     = errors.New("scores must be non-negative")

	// Bracket editor
	ErrInvalidEdge   = errors.New("invalid edge")
	ErrEdgeDuplicate = errors.New("edge already exists")

	// Formats
	ErrFormatNameConflict = errors.New("format name is already in use")
	ErrFormatInUse        = errors.New("format is attached to a round")
)

// mapRepositoryError turns repository sentinels into service errors.
func mapRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrCategoryNotFound),
		errors.Is(err, repositories.ErrRoundNotFound),
		errors.Is(err, repositories.ErrMatchNotFound),
		errors.Is(err, repositories.ErrTeamNotFound),
		errors.Is(err, repositories.ErrEdgeNotFound),
		errors.Is(err, repositories.ErrFormatNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repositories.ErrFormatNameConflict):
		return ErrFormatNameConflict
	case errors.Is(err, repositories.ErrFormatInUse):
		return ErrFormatInUse
	case errors.Is(err, repositories.ErrEdgeDuplicate):
		return ErrEdgeDuplicate
	case errors.Is(err, repositories.ErrRoundFormatInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidEdge, err)
	}
	return err
}
