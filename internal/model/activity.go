package model

import (
	"math"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

const (
	// Five minutes of watch time saturates the time component.
	watchSaturationSeconds = 300.0
	watchWeight            = 0.6
	trailerBonus           = 0.25
	movieBonus             = 0.15
)

// ActivityScore rates how engaged a viewer has been with a movie, in [0, 1].
// No activity record is a valid state and scores 0.
func ActivityScore(act *domain.MovieActivity) float64 {
	if act == nil {
		return 0.0
	}

	seconds := math.Max(act.SecondsWatched, 0)
	score := math.Min(seconds/watchSaturationSeconds, 1.0) * watchWeight
	if act.TrailerWatched {
		score += trailerBonus
	}
	if act.MovieWatched {
		score += movieBonus
	}

	return math.Min(score, 1.0)
}
