package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/actuallystonmai/cinema-recommendation/internal/domain"
)

// DefaultMaxFeatures caps the description vocabulary.
const DefaultMaxFeatures = 5000

type sparseVector struct {
	idx []int
	val []float64
}

func (v sparseVector) dot(o sparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.idx) && j < len(o.idx) {
		switch {
		case v.idx[i] == o.idx[j]:
			sum += v.val[i] * o.val[j]
			i++
			j++
		case v.idx[i] < o.idx[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Space is an immutable TF-IDF vector space over movie descriptions.
// Rows are L2-normalised, so cosine similarity is a dot product.
type Space struct {
	ids   []int64
	pos   map[int64]int
	rows  []sparseVector
	terms int
}

// Len returns the number of indexed movies.
func (s *Space) Len() int { return len(s.ids) }

// Terms returns the vocabulary size.
func (s *Space) Terms() int { return s.terms }

// Contains reports whether every id is indexed.
func (s *Space) Contains(ids ...int64) bool {
	for _, id := range ids {
		if _, ok := s.pos[id]; !ok {
			return false
		}
	}
	return true
}

// Similarity returns the cosine similarity of two indexed movies, in [0, 1].
func (s *Space) Similarity(a, b int64) (float64, error) {
	ia, ok := s.pos[a]
	if !ok {
		return 0, fmt.Errorf("movie %d: %w", a, domain.ErrMovieNotFound)
	}
	ib, ok := s.pos[b]
	if !ok {
		return 0, fmt.Errorf("movie %d: %w", b, domain.ErrMovieNotFound)
	}

	sim := s.rows[ia].dot(s.rows[ib])
	// rounding can push identical rows slightly past 1
	return math.Min(math.Max(sim, 0), 1), nil
}

// BuildSpace vectorises the descriptions of every movie in the catalogue.
func BuildSpace(movies []domain.Movie, maxFeatures int) *Space {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}

	caser := cases.Lower(language.Und)
	docs := make([][]string, len(movies))
	corpusFreq := make(map[string]int)
	for i, m := range movies {
		tokens := tokenize(caser.String(m.Document()))
		docs[i] = tokens
		for _, t := range tokens {
			corpusFreq[t]++
		}
	}

	vocab := selectVocabulary(corpusFreq, maxFeatures)

	df := make([]int, len(vocab))
	counts := make([]map[int]int, len(docs))
	for i, tokens := range docs {
		c := make(map[int]int)
		for _, t := range tokens {
			if idx, ok := vocab[t]; ok {
				c[idx]++
			}
		}
		for idx := range c {
			df[idx]++
		}
		counts[i] = c
	}

	n := float64(len(docs))
	idf := make([]float64, len(vocab))
	for i, d := range df {
		idf[i] = math.Log((1+n)/(1+float64(d))) + 1
	}

	space := &Space{
		ids:   make([]int64, len(movies)),
		pos:   make(map[int64]int, len(movies)),
		rows:  make([]sparseVector, len(movies)),
		terms: len(vocab),
	}
	for i, m := range movies {
		space.ids[i] = m.ID
		space.pos[m.ID] = i
		space.rows[i] = weightRow(counts[i], idf)
	}

	return space
}

func weightRow(counts map[int]int, idf []float64) sparseVector {
	row := sparseVector{
		idx: make([]int, 0, len(counts)),
		val: make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		row.idx = append(row.idx, idx)
	}
	sort.Ints(row.idx)

	var norm float64
	for _, idx := range row.idx {
		w := float64(counts[idx]) * idf[idx]
		row.val = append(row.val, w)
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range row.val {
			row.val[i] /= norm
		}
	}
	return row
}

// selectVocabulary keeps the maxFeatures most frequent terms, ties broken by term.
func selectVocabulary(freq map[string]int, maxFeatures int) map[string]int {
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	for i, t := range terms {
		vocab[t] = i
	}
	return vocab
}

// tokenize splits lower-cased text into words of at least two letters,
// digits or underscores and drops English stop words.
func tokenize(text string) []string {
	isWord := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
	}

	var tokens []string
	for _, field := range strings.FieldsFunc(text, func(r rune) bool { return !isWord(r) }) {
		if utf8.RuneCountInString(field) < 2 {
			continue
		}
		if _, stop := englishStopWords[field]; stop {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}
