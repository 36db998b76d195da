package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Stable error kinds returned by the state-machine operations. Handlers
// translate these with StatusForError; everything else is a 500.
var (
	// Validation — the caller's input or the entry's current state does not
	// permit the requested operation.
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("operation not allowed in current state")

	// Conflict — someone already acted on this record; the first caller won.
	ErrWinAlreadyReported = errors.New("a win has already been reported for this entry")
	ErrClaimAlreadyOpen   = errors.New("a verification is already open for this entry")
	ErrAlreadyFinalized   = errors.New("verification already finalized")
	ErrAlreadyConfirmed   = errors.New("witness confirmation already recorded")
	ErrEntrySettled       = errors.New("entry already settled")

	// Expiry — distinct from not-found so the witness page can explain
	// staleness instead of claiming the link never existed.
	ErrTokenExpired = errors.New("confirmation token expired")

	ErrTokenNotFound = errors.New("confirmation token not found")
	ErrNotFound      = errors.New("record not found")
	ErrForbidden     = errors.New("actor not permitted to perform this operation")
)

// StatusForError maps a domain error to its HTTP status.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTransition):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTokenNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrWinAlreadyReported),
		errors.Is(err, ErrClaimAlreadyOpen),
		errors.Is(err, ErrAlreadyFinalized),
		errors.Is(err, ErrAlreadyConfirmed),
		errors.Is(err, ErrEntrySettled):
		return fiber.StatusConflict
	case errors.Is(err, ErrTokenExpired):
		return fiber.StatusGone
	default:
		return fiber.StatusInternalServerError
	}
}
