package brackets

import "errors"

var (
	ErrInvalidFormatConfig = errors.New("invalid format config")
	ErrSlotConflict        = errors.New("slot already holds a different team")
	ErrCycleInGraph        = errors.New("bracket graph contains a cycle")
	ErrTeamNotInCategory   = errors.New("team does not belong to the category")
	ErrInternalInvariant   = errors.New("internal invariant violation")
	ErrUnsupportedFormat   = errors.New("unsupported format type")
)
