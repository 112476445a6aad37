package seeds

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/actuallystonmai/cinema-recommendation/internal/logging"
)

const (
	viewerCount   = 20
	ratingDraws   = 160
	activityDraws = 120
)

var genreNames = []string{"action", "drama", "comedy", "thriller", "sci-fi"}

var titles = map[string][]string{
	"action": {
		"Die Hard", "Mad Max: Fury Road", "John Wick", "The Dark Knight",
		"Gladiator", "Top Gun: Maverick", "The Raid", "Mission: Impossible",
	},
	"drama": {
		"The Shawshank Redemption", "Forrest Gump", "The Godfather",
		"A Beautiful Mind", "12 Angry Men", "Moonlight", "Whiplash", "The Green Mile",
	},
	"comedy": {
		"Superbad", "The Hangover", "Bridesmaids", "Step Brothers",
		"Anchorman", "Hot Fuzz", "Groundhog Day", "The Grand Budapest Hotel",
	},
	"thriller": {
		"Se7en", "Gone Girl", "Zodiac", "Prisoners",
		"Sicario", "Nightcrawler", "Shutter Island", "Oldboy",
	},
	"sci-fi": {
		"Blade Runner 2049", "Interstellar", "The Matrix", "Arrival",
		"Dune", "Ex Machina", "Alien", "Inception",
	},
}

// phrases per genre; descriptions are stitched from these so related movies share vocabulary
var phrases = map[string][]string{
	"action": {
		"a retired soldier fights through a fortress of mercenaries",
		"explosive car chases across a burning city",
		"a lone assassin seeks revenge against a crime syndicate",
		"hand to hand combat in a besieged tower",
	},
	"drama": {
		"a family struggles to stay together after a tragedy",
		"an unlikely friendship grows inside a prison",
		"a young musician pushes himself to the breaking point",
		"a quiet story of grief, ambition and forgiveness",
	},
	"comedy": {
		"two hapless friends wake up with no memory of the wedding",
		"an awkward road trip spirals into absurd chaos",
		"a small town police officer stumbles onto a ridiculous conspiracy",
		"a weatherman relives the same embarrassing day",
	},
	"thriller": {
		"a detective hunts a meticulous serial killer",
		"a missing wife leaves behind a trail of dark secrets",
		"a kidnapping investigation turns desperate and violent",
		"a journalist uncovers a conspiracy in the night",
	},
	"sci-fi": {
		"astronauts travel through a wormhole to save humanity",
		"an android questions what it means to be human",
		"a hacker discovers reality is a simulation",
		"a linguist deciphers the language of alien visitors",
	},
}

type seedMovie struct {
	title       string
	short       string
	full        string
	releaseYear int
	genreIDs    []int64
}

//nolint:gocritic // zerolog.Logger is passed by value
func Setup(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	logger = logging.Component(logger, "seed")
	rng := rand.New(rand.NewSource(42))

	// Truncate existing data before insert
	logger.Info().Msg("truncating existing data")
	if _, err := pool.Exec(ctx, `
		TRUNCATE movie_activity, ratings, movie_genres, movies, genres, viewers RESTART IDENTITY CASCADE
	`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	logger.Info().Msg("inserting genres")
	genreRows := make([][]any, len(genreNames))
	for i, g := range genreNames {
		genreRows[i] = []any{g}
	}
	if err := insertRows(ctx, pool, "genres", []string{"name"}, genreRows); err != nil {
		return fmt.Errorf("seed genres: %w", err)
	}

	logger.Info().Msg("inserting viewers")
	if err := insertRows(ctx, pool, "viewers", []string{"first_name", "last_name", "email", "created_at"}, buildViewers(rng, viewerCount)); err != nil {
		return fmt.Errorf("seed viewers: %w", err)
	}

	movies := buildCatalog(rng)
	logger.Info().Int("movies", len(movies)).Msg("inserting movies")
	movieRows := make([][]any, 0, len(movies))
	linkRows := make([][]any, 0, len(movies)*2)
	for i, m := range movies {
		movieRows = append(movieRows, []any{m.title, m.short, m.full, m.releaseYear})
		for _, g := range m.genreIDs {
			linkRows = append(linkRows, []any{int64(i + 1), g})
		}
	}
	if err := insertRows(ctx, pool, "movies", []string{"title", "short_description", "full_description", "release_year"}, movieRows); err != nil {
		return fmt.Errorf("seed movies: %w", err)
	}
	if err := insertRows(ctx, pool, "movie_genres", []string{"movie_id", "genre_id"}, linkRows); err != nil {
		return fmt.Errorf("seed movie genres: %w", err)
	}

	logger.Info().Msg("inserting ratings")
	if err := insertRows(ctx, pool, "ratings", []string{"viewer_id", "movie_id", "score", "created_at"}, buildRatings(rng, len(movies))); err != nil {
		return fmt.Errorf("seed ratings: %w", err)
	}

	logger.Info().Msg("inserting activity")
	if err := insertRows(ctx, pool, "movie_activity",
		[]string{"viewer_id", "movie_id", "seconds_watched", "watched_trailer", "watched_movie", "last_visit"},
		buildActivity(rng, len(movies))); err != nil {
		return fmt.Errorf("seed activity: %w", err)
	}

	logger.Info().Msg("seeding complete")
	return nil
}

// insertRows runs one multi-row INSERT.
func insertRows(ctx context.Context, pool *pgxpool.Pool, table string, cols []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*len(cols))
	for _, row := range rows {
		placeholders := make([]string, len(row))
		for j := range row {
			placeholders[j] = fmt.Sprintf("$%d", len(args)+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, strings.Join(cols, ", "), strings.Join(values, ", "))
	_, err := pool.Exec(ctx, query, args...)
	return err
}

func buildViewers(rng *rand.Rand, n int) [][]any {
	firstNames := []string{"Ada", "Alan", "Grace", "Linus", "Margaret", "Ken", "Barbara", "Dennis"}
	lastNames := []string{"Lovelace", "Turing", "Hopper", "Torvalds", "Hamilton", "Thompson", "Liskov", "Ritchie"}

	rows := make([][]any, 0, n)
	for i := range n {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		email := fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i+1)
		createdAt := time.Now().AddDate(0, 0, -rng.Intn(365))
		rows = append(rows, []any{first, last, email, createdAt})
	}
	return rows
}

// buildCatalog lays movies out genre by genre; genre ids follow genreNames order.
func buildCatalog(rng *rand.Rand) []seedMovie {
	var movies []seedMovie
	for gi, genre := range genreNames {
		pool := phrases[genre]
		for _, title := range titles[genre] {
			a := rng.Intn(len(pool))
			b := (a + 1 + rng.Intn(len(pool)-1)) % len(pool)

			ids := []int64{int64(gi + 1)}
			// roughly a third get a secondary genre
			if rng.Float64() < 0.33 {
				second := int64(rng.Intn(len(genreNames)) + 1)
				if second != ids[0] {
					ids = append(ids, second)
				}
			}

			movies = append(movies, seedMovie{
				title:       title,
				short:       pool[a],
				full:        fmt.Sprintf("%s. %s. %s.", title, capitalize(pool[a]), capitalize(pool[b])),
				releaseYear: 1970 + rng.Intn(55),
				genreIDs:    ids,
			})
		}
	}
	return movies
}

func buildRatings(rng *rand.Rand, movieCount int) [][]any {
	seen := make(map[[2]int64]bool)
	scoreChoices := []string{"1", "3", "5", "7", "8", "9", "10"}
	scoreWeights := []float64{0.05, 0.1, 0.15, 0.2, 0.2, 0.15, 0.15}

	var rows [][]any
	for range ratingDraws {
		viewerID := powerLawPick(rng, 1.5, viewerCount)
		movieID := powerLawPick(rng, 1.3, movieCount)
		key := [2]int64{viewerID, movieID}
		if seen[key] {
			continue
		}
		seen[key] = true

		score, _ := strconv.Atoi(weightedChoice(rng, scoreChoices, scoreWeights))
		createdAt := time.Now().AddDate(0, 0, -rng.Intn(180))
		rows = append(rows, []any{viewerID, movieID, score, createdAt})
	}
	return rows
}

func buildActivity(rng *rand.Rand, movieCount int) [][]any {
	seen := make(map[[2]int64]bool)

	var rows [][]any
	for range activityDraws {
		viewerID := powerLawPick(rng, 1.2, viewerCount)
		movieID := powerLawPick(rng, 1.4, movieCount)
		key := [2]int64{viewerID, movieID}
		if seen[key] {
			continue
		}
		seen[key] = true

		seconds := math.Round(powerLawScore(rng)*900*10) / 10
		trailer := rng.Float64() < 0.4
		watched := seconds >= 300 && rng.Float64() < 0.5
		lastVisit := time.Now().Add(-time.Duration(rng.Intn(30*24)) * time.Hour)
		rows = append(rows, []any{viewerID, movieID, seconds, trailer, watched, lastVisit})
	}
	return rows
}

// powerLawPick returns an id in [1, n] skewed towards low ids.
func powerLawPick(rng *rand.Rand, exp float64, n int) int64 {
	id := int64(math.Ceil(math.Pow(rng.Float64(), exp) * float64(n)))
	return max(1, min(id, int64(n)))
}

func powerLawScore(rng *rand.Rand) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.001
	}
	raw := math.Pow(u, 2.0)
	if raw < 0.01 {
		raw = 0.01
	}
	return math.Round(raw*100) / 100
}

func weightedChoice(rng *rand.Rand, choices []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
