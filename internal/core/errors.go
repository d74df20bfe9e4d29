package core

import "errors"

// Core errors that can occur across the system
var (
	// Pipeline errors
	ErrFetchFailed      = errors.New("mailbox fetch failed")
	ErrGenerationFailed = errors.New("generation failed")
	ErrInvalidMeeting   = errors.New("invalid meeting")
	ErrRunInProgress    = errors.New("run cycle already in progress")

	// Storage errors
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
	ErrMigrationFailed     = errors.New("migration failed")

	// Auth errors
	ErrNotAuthenticated = errors.New("not authenticated")

	// Config errors
	ErrInvalidConfig = errors.New("invalid configuration")
)
