package domain

import "errors"

var (
	ErrViewerNotFound  = errors.New("viewer not found")
	ErrMovieNotFound   = errors.New("movie not found")
	ErrInvalidScore    = errors.New("score must be between 1 and 10")
	ErrInvalidActivity = errors.New("seconds watched must not be negative")
)
