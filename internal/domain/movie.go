package domain

type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	ShortDescription string  `json:"short_description"`
	FullDescription  string  `json:"full_description"`
	GenreIDs         []int64 `json:"genre_ids"`
	ReleaseYear      int     `json:"release_year"`
}

// Document is the text the description index is built from.
func (m Movie) Document() string {
	return m.FullDescription + " " + m.ShortDescription
}
