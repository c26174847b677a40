// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// WrapEngineError converts a generic engine error into a structured
// StoreError, classifying badger's own sentinel errors by string pattern the
// same way a caller would classify a transaction conflict from the error
// text badger returns.
func WrapEngineError(err error) *StoreError {
	if err == nil {
		return nil
	}

	var se *StoreError
	if stderrors.As(err, &se) {
		return se
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "Transaction Conflict"):
		return NewEngineError("transaction conflict, retry", err, true)
	case strings.Contains(errStr, "Key not found"):
		return New(CodeInvalidArgument, "key not found")
	default:
		return NewEngineError(fmt.Sprintf("engine operation failed: %s", errStr), err, false)
	}
}

// NewCorruptKeyf formats a CorruptKeyError message.
func NewCorruptKeyf(keyBytes []byte, cause error, format string, args ...interface{}) *CorruptKeyError {
	return NewCorruptKey(fmt.Sprintf(format, args...), keyBytes, cause)
}

// NewInvalidArgumentf formats a ValidationError message.
func NewInvalidArgumentf(field string, value interface{}, format string, args ...interface{}) *ValidationError {
	return NewInvalidArgument(fmt.Sprintf(format, args...), field, value)
}

// IsConflict reports whether err is an EngineError caused by a transaction
// commit conflict, i.e. safe to retry with a fresh transaction.
func IsConflict(err error) bool {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Code == CodeEngineError && se.Retryable
	}
	return false
}

// IsCorruption reports whether err indicates on-disk data that could not be
// decoded (a corrupt key or corrupt value).
func IsCorruption(err error) bool {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Category == CategoryCorruption
	}
	return false
}

// IsInvalidArgument reports whether err was raised by a validation check
// before any mutation was attempted.
func IsInvalidArgument(err error) bool {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Code == CodeInvalidArgument
	}
	return false
}

// GetErrorCode extracts the Code from any error, or CodeUnknown if it isn't,
// or doesn't wrap, a StoreError.
func GetErrorCode(err error) Code {
	return CodeOf(err)
}

// GetErrorCategory extracts the Category from any error, or CategoryUnknown
// if it isn't, or doesn't wrap, a StoreError.
func GetErrorCategory(err error) Category {
	var se *StoreError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return CategoryUnknown
}
