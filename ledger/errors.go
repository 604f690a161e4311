package ledger

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrEmptyName          = errors.New("name can't be empty")
	ErrEmptyCurrency      = errors.New("currency can't be empty")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidFee         = errors.New("exchange fee can't be negative")
	ErrInvalidWeighting   = errors.New("weighting must be positive")
	ErrNoAffected         = errors.New("an expense must affect at least one participant")
	ErrSelfSettlement     = errors.New("sender and recipient must differ")
	ErrMissingParticipant = errors.New("admin and accountant are required")
	ErrCurrencyNotAllowed = errors.New("currency is not attached to the event")
	ErrAmountPrecision    = errors.New("amount is finer than the currency's smallest unit")
)

// Guard rejections. Expected during normal use; callers report them to the user.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not allowed for this user")
	ErrEventClosed        = errors.New("event is closed")
	ErrOpenDrafts         = errors.New("event still has open draft settlements")
	ErrAlreadyConfirmed   = errors.New("settlement is already confirmed")
	ErrDraftSettlement    = errors.New("draft settlements can only be confirmed")
	ErrParticipantInUse   = errors.New("participant is still referenced by transactions")
	ErrCurrencyInUse      = errors.New("currency is still used by the event")
	ErrNotParticipant     = errors.New("user is not a participant of the event")
	ErrAlreadyParticipant = errors.New("user is already a participant of the event")
)

// ErrInvariant marks programming errors: the caller referenced something the
// event does not hold. These are not user-recoverable.
var ErrInvariant = errors.New("ledger invariant violated")

var (
	ErrCurrencyNotInEvent = fmt.Errorf("%w: currency not attached to event", ErrInvariant)
	ErrUnknownParticipant = fmt.Errorf("%w: unknown participant", ErrInvariant)
)
