package goknow

import "errors"

var (
	// ErrEmptyQuestion is returned when a question is empty or too short
	// after sanitising.
	ErrEmptyQuestion = errors.New("goknow: question is empty or too short")

	// ErrClosed is returned when operating on a closed engine.
	ErrClosed = errors.New("goknow: engine is closed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("goknow: invalid configuration")

	// ErrHistoryDisabled is returned by history operations when the journal
	// is turned off.
	ErrHistoryDisabled = errors.New("goknow: history journal is disabled")

	// ErrNoEmbeddings is returned by similarity search when no embedding
	// provider is configured.
	ErrNoEmbeddings = errors.New("goknow: no embedding provider configured")

	// ErrNoRecords is returned when a learn request carries no records.
	ErrNoRecords = errors.New("goknow: no records to learn")
)
