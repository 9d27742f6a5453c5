package ana

import "errors"

// Error taxonomy for derived-object accessors. All failures returned by this
// package wrap one of these sentinels, so callers can branch with errors.Is.
var (
	// ErrMissingPrerequisite reports that a derived quantity was requested
	// before its inputs exist: an undefined b-jet or VBF pair, an absent run
	// summary, or an unconfigured external collaborator.
	ErrMissingPrerequisite = errors.New("missing prerequisite")

	// ErrInvalidIndex reports a leg or jet index outside {1, 2} or outside
	// the bounds of the underlying record arrays.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrConflictingRequest reports a mutually exclusive option combination,
	// e.g. requesting a resonance momentum that is both fit-corrected and
	// MET-inclusive.
	ErrConflictingRequest = errors.New("conflicting request")
)
