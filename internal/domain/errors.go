package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrEmptyTerm     = errors.New("empty search term")
	ErrQueueFull     = errors.New("queue full")
	ErrClosed        = errors.New("closed")
)
