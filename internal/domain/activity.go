package domain

import "time"

type MovieActivity struct {
	ViewerID       int64     `json:"viewer_id"`
	MovieID        int64     `json:"movie_id"`
	SecondsWatched float64   `json:"seconds_watched"`
	TrailerWatched bool      `json:"watched_trailer"`
	MovieWatched   bool      `json:"watched_movie"`
	LastVisit      time.Time `json:"last_visit"`
}

// ActivityEvent is one viewing report. Seconds are added to the stored total
// and the flags are OR-ed in.
type ActivityEvent struct {
	ViewerID       int64
	MovieID        int64
	SecondsWatched float64
	TrailerWatched bool
	MovieWatched   bool
}
