package service

import (
	"github.com/go-faster/errors"

	"github.com/mmeshcher/rewards-platform/internal/repository"
	"github.com/mmeshcher/rewards-platform/internal/validation"
)

// Kind классифицирует ошибки бизнес-логики для вызывающей стороны.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindInsufficientBalance
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// Error описывает ожидаемый отказ операции. Значения сравниваются через errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrValidation    = newError(KindValidation, "invalid input")
	ErrInvalidType   = newError(KindValidation, "type must be deposit or withdraw")
	ErrInvalidAmount = newError(KindValidation, "enter a valid amount in USD")
	ErrBelowMinimum  = newError(KindValidation, "amount is below the minimum")

	ErrNoTaskReady   = newError(KindConflict, "no task is ready")
	ErrRunInProgress = newError(KindConflict, "a task is already in progress")
	ErrTooEarly      = newError(KindConflict, "wait period has not elapsed yet")
	ErrTaskNotReady  = newError(KindConflict, "task is not ready")
	ErrNotEligible   = newError(KindConflict, "task is not available for completion")
	ErrNotPending    = newError(KindConflict, "request is not pending")
	ErrUserExists    = newError(KindConflict, "account already exists")

	ErrNotFound   = newError(KindNotFound, "not found")
	ErrInvalidRun = newError(KindNotFound, "invalid task run")

	ErrInsufficientBalance = newError(KindInsufficientBalance, "insufficient points balance")

	ErrInvalidCredentials = newError(KindUnauthorized, "invalid credentials")
	ErrUserInactive       = newError(KindForbidden, "account is inactive")
)

// invalid сообщает об ошибке валидации с уточнением причины.
func invalid(cause error) error {
	return errors.Wrap(ErrValidation, cause.Error())
}

// KindOf определяет класс ошибки, включая ошибки хранилища и валидации.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrTaskNotFound),
		errors.Is(err, repository.ErrWalletTxNotFound),
		errors.Is(err, repository.ErrRunNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrOrderIndexTaken),
		errors.Is(err, repository.ErrRunExists):
		return KindConflict
	case errors.Is(err, validation.ErrInvalidAmount),
		errors.Is(err, validation.ErrTitleRequired),
		errors.Is(err, validation.ErrInvalidReward),
		errors.Is(err, validation.ErrInvalidWait),
		errors.Is(err, validation.ErrInvalidOrder):
		return KindValidation
	}

	return KindInternal
}
