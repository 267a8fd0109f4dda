package domain

import (
	"strconv"
	"strings"
)

const (
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	PosterPlaceholder   = "/no-movie.png"
	notAvailable        = "N/A"
)

// MovieSummary is one catalog entry as returned by the search and discover
// endpoints. Optional attributes are nil when the provider omits them or
// sends null.
type MovieSummary struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	PosterPath       *string  `json:"poster_path,omitempty"`
	VoteAverage      *float64 `json:"vote_average,omitempty"`
	ReleaseDate      *string  `json:"release_date,omitempty"`
	OriginalLanguage string   `json:"original_language"`
}

func (m MovieSummary) HasPoster() bool {
	return m.PosterPath != nil && strings.TrimSpace(*m.PosterPath) != ""
}

// PosterURL joins the image base with the poster path, falling back to the
// placeholder image when the movie has no poster.
func (m MovieSummary) PosterURL(imageBaseURL string) string {
	if !m.HasPoster() {
		return PosterPlaceholder
	}
	base := strings.TrimRight(strings.TrimSpace(imageBaseURL), "/")
	if base == "" {
		base = DefaultImageBaseURL
	}
	path := strings.TrimSpace(*m.PosterPath)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// RatingLabel renders the average vote with one decimal, or N/A.
func (m MovieSummary) RatingLabel() string {
	if m.VoteAverage == nil || *m.VoteAverage == 0 {
		return notAvailable
	}
	return strconv.FormatFloat(*m.VoteAverage, 'f', 1, 64)
}

// ReleaseYear returns the year part of the release date, or N/A.
func (m MovieSummary) ReleaseYear() string {
	if m.ReleaseDate == nil {
		return notAvailable
	}
	date := strings.TrimSpace(*m.ReleaseDate)
	if date == "" {
		return notAvailable
	}
	year, _, _ := strings.Cut(date, "-")
	return year
}
