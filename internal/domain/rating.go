package domain

import "time"

const (
	MinScore = 1
	MaxScore = 10
)

type Rating struct {
	ViewerID  int64     `json:"viewer_id"`
	MovieID   int64     `json:"movie_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Mood maps a score onto a signed weight centred on 5: 1 -> -0.8, 5 -> 0, 10 -> 1.
func (r Rating) Mood() float64 {
	return float64(r.Score-5) / 5.0
}
