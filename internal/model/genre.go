package model

import "github.com/actuallystonmai/cinema-recommendation/internal/domain"

// GenreSimilarity is the Jaccard index of the two movies' genre sets.
// A movie without genres is similar to nothing.
func GenreSimilarity(a, b domain.Movie) float64 {
	if len(a.GenreIDs) == 0 || len(b.GenreIDs) == 0 {
		return 0.0
	}

	setA := make(map[int64]struct{}, len(a.GenreIDs))
	for _, id := range a.GenreIDs {
		setA[id] = struct{}{}
	}

	union := len(setA)
	intersection := 0
	seen := make(map[int64]struct{}, len(b.GenreIDs))
	for _, id := range b.GenreIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := setA[id]; ok {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}
