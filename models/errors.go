package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of failure categories callers can branch on
type ErrorKind string

const (
	KindUnknown                ErrorKind = "unknown"
	KindValidation             ErrorKind = "validation"
	KindIllegalStateTransition ErrorKind = "illegal_state_transition"
	KindDuplicateParticipation ErrorKind = "duplicate_participation"
	KindCapacityExceeded       ErrorKind = "capacity_exceeded"
	KindUnknownOption          ErrorKind = "unknown_option"
	KindAlreadySettled         ErrorKind = "already_settled"
	KindInsufficientBalance    ErrorKind = "insufficient_balance"
	KindNotFound               ErrorKind = "not_found"
	KindRepository             ErrorKind = "repository"
)

// Sentinel errors. Wrap with fmt.Errorf("%w: ...", ErrXxx) to add context.
var (
	ErrValidation                = errors.New("validation failed")
	ErrIllegalStateTransition    = errors.New("illegal state transition")
	ErrInvalidStateForSettlement = errors.New("game is not in a settleable state")
	ErrBettingClosed             = errors.New("betting window is closed")
	ErrDuplicateParticipation    = errors.New("user already has a stake in this game")
	ErrCapacityExceeded          = errors.New("game has reached its participant limit")
	ErrUnknownOption             = errors.New("unknown option")
	ErrAlreadySettled            = errors.New("game already settled")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrGameNotFound              = errors.New("game not found")
	ErrRepository                = errors.New("repository failure")
)

// ValidationError reports a bad input value for a single field
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a field-scoped validation error
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RepositoryError wraps a persistence failure with the operation that failed
type RepositoryError struct {
	Op  string
	Err error
}

// NewRepositoryError wraps err as a repository failure for op
func NewRepositoryError(op string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Err: err}
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRepository) match any RepositoryError
func (e *RepositoryError) Is(target error) bool {
	return target == ErrRepository
}

// KindOf classifies an error into its ErrorKind
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAlreadySettled):
		return KindAlreadySettled
	case errors.Is(err, ErrIllegalStateTransition),
		errors.Is(err, ErrInvalidStateForSettlement),
		errors.Is(err, ErrBettingClosed):
		return KindIllegalStateTransition
	case errors.Is(err, ErrDuplicateParticipation):
		return KindDuplicateParticipation
	case errors.Is(err, ErrCapacityExceeded):
		return KindCapacityExceeded
	case errors.Is(err, ErrUnknownOption):
		return KindUnknownOption
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrGameNotFound):
		return KindNotFound
	case errors.Is(err, ErrRepository):
		return KindRepository
	default:
		return KindUnknown
	}
}

// HTTPStatus maps an error kind to the status code an API layer should answer with
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindIllegalStateTransition, KindAlreadySettled, KindDuplicateParticipation, KindCapacityExceeded:
		return http.StatusConflict
	case KindUnknownOption, KindNotFound:
		return http.StatusNotFound
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
