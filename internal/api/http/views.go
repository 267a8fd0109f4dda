package apihttp

import (
	"moviescout/internal/domain"
	"moviescout/internal/session"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// movieView is a MovieSummary plus the derived card fields.
type movieView struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	PosterPath       *string  `json:"posterPath"`
	VoteAverage      *float64 `json:"voteAverage"`
	ReleaseDate      *string  `json:"releaseDate"`
	OriginalLanguage string   `json:"originalLanguage"`
	PosterURL        string   `json:"posterUrl"`
	Rating           string   `json:"rating"`
	Year             string   `json:"year"`
}

type queryResultView struct {
	Status string      `json:"status"`
	Query  string      `json:"query"`
	Movies []movieView `json:"movies"`
	Error  string      `json:"error,omitempty"`
}

type stateView struct {
	Term    string          `json:"term"`
	Loading bool            `json:"loading"`
	Seq     uint64          `json:"seq"`
	Result  queryResultView `json:"result"`
}

type trendingView struct {
	Items []domain.TrendingRecord `json:"items"`
}

func newMovieView(m domain.MovieSummary, imageBaseURL string) movieView {
	return movieView{
		ID:               m.ID,
		Title:            m.Title,
		PosterPath:       m.PosterPath,
		VoteAverage:      m.VoteAverage,
		ReleaseDate:      m.ReleaseDate,
		OriginalLanguage: m.OriginalLanguage,
		PosterURL:        m.PosterURL(imageBaseURL),
		Rating:           m.RatingLabel(),
		Year:             m.ReleaseYear(),
	}
}

func newQueryResultView(query string, result domain.QueryResult, imageBaseURL string) queryResultView {
	movies := result.Movies()
	view := queryResultView{
		Status: string(result.Status()),
		Query:  query,
		Movies: make([]movieView, 0, len(movies)),
		Error:  result.Message(),
	}
	for _, m := range movies {
		view.Movies = append(view.Movies, newMovieView(m, imageBaseURL))
	}
	return view
}

func newStateView(state session.State, imageBaseURL string) stateView {
	return stateView{
		Term:    state.Term,
		Loading: state.Loading,
		Seq:     state.Seq,
		Result:  newQueryResultView(state.Term, state.Result, imageBaseURL),
	}
}

func newTrendingView(records []domain.TrendingRecord) trendingView {
	if records == nil {
		records = []domain.TrendingRecord{}
	}
	return trendingView{Items: records}
}
