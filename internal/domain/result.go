package domain

type ResultStatus string

const (
	ResultEmpty   ResultStatus = "empty"
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// QueryResult holds exactly one of: a successful (possibly empty) movie
// list, an error message, or nothing yet. The zero value is the empty state.
type QueryResult struct {
	status  ResultStatus
	movies  []MovieSummary
	message string
}

func SuccessResult(movies []MovieSummary) QueryResult {
	if movies == nil {
		movies = []MovieSummary{}
	}
	return QueryResult{status: ResultSuccess, movies: movies}
}

func FailureResult(message string) QueryResult {
	return QueryResult{status: ResultError, message: message}
}

func (r QueryResult) Status() ResultStatus {
	if r.status == "" {
		return ResultEmpty
	}
	return r.status
}

func (r QueryResult) IsSuccess() bool { return r.status == ResultSuccess }
func (r QueryResult) IsError() bool   { return r.status == ResultError }
func (r QueryResult) IsEmpty() bool   { return r.Status() == ResultEmpty }

// Movies returns the result list; nil unless the result is a success.
func (r QueryResult) Movies() []MovieSummary {
	if r.status != ResultSuccess {
		return nil
	}
	return r.movies
}

// Message returns the error message; empty unless the result is an error.
func (r QueryResult) Message() string {
	if r.status != ResultError {
		return ""
	}
	return r.message
}
