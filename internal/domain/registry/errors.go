package registry

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, machine-readable reason a registry call failed.
// Values are part of the wire contract; never renumber or rename them.
type ErrorCode string

const (
	CodeNone ErrorCode = ""

	// malformed input
	CodeInvalidIDFormat    ErrorCode = "invalid_id_format"
	CodeMissingField       ErrorCode = "missing_field"
	CodeInvalidParamsShape ErrorCode = "invalid_params_shape"
	CodeUnknownOpCode      ErrorCode = "unknown_op_code"

	// asset preconditions
	CodeAssetAlreadyExists   ErrorCode = "asset_already_exists"
	CodeAssetAlreadyArchived ErrorCode = "asset_already_archived"
	CodeAssetNotAlive        ErrorCode = "asset_not_alive"
	CodeAssetHeldByOther     ErrorCode = "asset_held_by_other"
	CodeAssetNotHeld         ErrorCode = "asset_not_held"
	CodeTransferToSelf       ErrorCode = "transfer_to_self"
	CodeOwnershipMismatch    ErrorCode = "ownership_mismatch"

	// operation ledger
	CodeStateConflict ErrorCode = "state_conflict"
	CodeOpNotFound    ErrorCode = "op_not_found"

	// lock protocol
	CodeAlreadyLocked ErrorCode = "already_locked"
	CodeLockNotFound  ErrorCode = "lock_not_found"
	CodeNotPrepared   ErrorCode = "not_prepared"
	CodeNotCommitted  ErrorCode = "not_committed"
	CodeWrongLocker   ErrorCode = "wrong_locker"

	// dependent systems
	CodeMutexUnavailable ErrorCode = "mutex_unavailable"
	CodeStoreFailure     ErrorCode = "store_failure"
)

type ErrorKind string

const (
	KindMalformed  ErrorKind = "malformed"
	KindState      ErrorKind = "state"
	KindOwnership  ErrorKind = "ownership"
	KindNotFound   ErrorKind = "not_found"
	KindDependency ErrorKind = "dependency"
)

func (c ErrorCode) Kind() ErrorKind {
	switch c {
	case CodeInvalidIDFormat, CodeMissingField, CodeInvalidParamsShape, CodeUnknownOpCode, CodeTransferToSelf:
		return KindMalformed
	case CodeAssetAlreadyExists, CodeAssetAlreadyArchived, CodeStateConflict, CodeAlreadyLocked,
		CodeNotPrepared, CodeNotCommitted, CodeAssetNotHeld:
		return KindState
	case CodeAssetHeldByOther, CodeOwnershipMismatch, CodeWrongLocker:
		return KindOwnership
	case CodeAssetNotAlive, CodeOpNotFound, CodeLockNotFound:
		return KindNotFound
	default:
		return KindDependency
	}
}

// Error carries a stable code plus a human-readable message. Two *Error
// values match under errors.Is when their codes are equal.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func Errorf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to a lower-level failure.
func Wrap(code ErrorCode, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Sentinel returns a bare error with code, for use with errors.Is.
func Sentinel(code ErrorCode) *Error { return &Error{Code: code} }

// CodeOf extracts the code of err. Errors that carry no code are treated as
// dependent-system failures.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStoreFailure
}
