package domain

import "time"

// TrendingRecord counts how many searches for a term produced results.
// There is at most one record per term.
type TrendingRecord struct {
	ID         string    `json:"id"`
	SearchTerm string    `json:"searchTerm"`
	Count      int64     `json:"count"`
	MovieID    int       `json:"movieId"`
	PosterURL  string    `json:"posterUrl"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TrendingSeed carries the fields written only when a term is first seen.
type TrendingSeed struct {
	SearchTerm string
	MovieID    int
	PosterURL  string
}
