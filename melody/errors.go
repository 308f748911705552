package melody

import "errors"

var (
	// ErrInput marks audio that could not be loaded; the pipeline never starts
	ErrInput = errors.New("input error")

	// ErrConfiguration marks invalid tempo, window or threshold parameters
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEmptyResult reports that no window passed the validity checks.
	// The Transcriber does not return it; callers opt in through Result.Err.
	ErrEmptyResult = errors.New("no stable melody found")
)
