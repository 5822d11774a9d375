package domain

import (
	"errors"
	"time"
)

// Error kinds. Every error that may cross the HTTP boundary wraps exactly one of these.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrRateLimited  = errors.New("rate limited")
)

// Error is a taxonomy error: a kind plus a message that is safe to show to clients.
type Error struct {
	Kind       error
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

// NewValidationError builds an ad-hoc validation error with a client-facing message.
func NewValidationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NewRateLimitError builds a rate limit error that tells the client when to retry.
func NewRateLimitError(retryAfter time.Duration) *Error {
	return &Error{Kind: ErrRateLimited, Message: "too many requests", RetryAfter: retryAfter}
}

var (
	ErrSessionNotFound     = &Error{Kind: ErrNotFound, Message: "session not found"}
	ErrParticipantNotFound = &Error{Kind: ErrNotFound, Message: "participant not found"}
	ErrReportNotFound      = &Error{Kind: ErrNotFound, Message: "report not found"}
	ErrNotHost             = &Error{Kind: ErrForbidden, Message: "only the session host can do this"}
	ErrSessionClosed       = &Error{Kind: ErrConflict, Message: "session is closed for counting"}
	ErrCatalogLocked       = &Error{Kind: ErrConflict, Message: "catalog cannot change once counting has started"}
	ErrAlreadyFinalized    = &Error{Kind: ErrValidation, Message: "session already finalized"}
	ErrReportExists        = &Error{Kind: ErrConflict, Message: "report already exists for session"}
	ErrSessionFull         = &Error{Kind: ErrRateLimited, Message: "session is full"}
	ErrQuotaExceeded       = &Error{Kind: ErrRateLimited, Message: "session quota exceeded"}
	ErrMissingIdentity     = &Error{Kind: ErrUnauthorized, Message: "missing user identity"}
	ErrCatalogEditing      = &Error{Kind: ErrConflict, Message: "catalog update already in progress"}
	ErrDrainPending        = &Error{Kind: ErrConflict, Message: "session is closing with writes still in flight, regenerate the report to complete it"}
	ErrLedgerPurged        = &Error{Kind: ErrConflict, Message: "ledger purged, report cannot be regenerated"}
)

// ErrCatalogUpdating rejects a movement batch while the host swaps the
// catalog. It is retryable, so queued scans are pushed again shortly.
var ErrCatalogUpdating = &Error{Kind: ErrRateLimited, Message: "catalog is being updated, retry shortly", RetryAfter: time.Second}

// ErrReportMissing marks a FINALIZED session whose report could not be stored.
// The ledger is intact; the report can be regenerated.
var ErrReportMissing = errors.New("session finalized but report generation failed")

// ErrDuplicateAccessCode is returned by repositories when an access code collides.
var ErrDuplicateAccessCode = errors.New("access code already in use")

// ErrDuplicateParticipant is returned by repositories when a display name is already taken.
var ErrDuplicateParticipant = errors.New("participant name already in use")
