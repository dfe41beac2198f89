package coach

import "errors"

// Error kinds the engine surfaces distinctly. All of them are
// recoverable; none mutate state before failing.
var (
	ErrInvalidDimension  = errors.New("coach: invalid weight dimension")
	ErrInvalidValue      = errors.New("coach: invalid value")
	ErrNoActiveThread    = errors.New("coach: no active thread")
	ErrEmptyInput        = errors.New("coach: empty input")
	ErrGenerationFailure = errors.New("coach: generation failed")
)
