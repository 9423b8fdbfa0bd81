package qq

import "errors"

var (
	// ErrUnknownMethod reports a correction method other than additive or
	// multiplicative.
	ErrUnknownMethod = errors.New("unknown correction method")

	// ErrShapeMismatch reports input grids whose spatial extents disagree.
	ErrShapeMismatch = errors.New("grid spatial extents do not match")

	// ErrNoValidCell reports that aggregate-mode sampling could not find a
	// starting cell with data after the retry cap.
	ErrNoValidCell = errors.New("no valid cell found for sampling")
)
