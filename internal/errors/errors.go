// Package errors provides structured error handling for matscan operations.
// It defines error codes, error types, and utilities for creating and
// classifying errors raised while processing probe responses and talking
// to the document store.
package errors

import (
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Response processing errors.
	CodeMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"
	CodeMissingDescription ErrorCode = "MISSING_DESCRIPTION"
	CodeKnownBadSource     ErrorCode = "KNOWN_BAD_SOURCE"
	CodeFakeSample         ErrorCode = "FAKE_SAMPLE"
	CodeMalformedRecord    ErrorCode = "MALFORMED_RECORD"

	// Document store errors.
	CodeStoreConnection ErrorCode = "STORE_CONNECTION"
	CodeStoreQuery      ErrorCode = "STORE_QUERY"
	CodeStoreWrite      ErrorCode = "STORE_WRITE"
	CodeStoreTimeout    ErrorCode = "STORE_TIMEOUT"

	// Best-effort side channel errors.
	CodeWebhookDelivery ErrorCode = "WEBHOOK_DELIVERY"
)

// ProcessError represents an error raised while normalizing or vetting a
// single probe response. These are always per-item: they skip the record
// and never abort a batch.
type ProcessError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// NewProcessError creates a new processing error with the specified code.
func NewProcessError(code ErrorCode, message string) *ProcessError {
	return &ProcessError{Code: code, Message: message}
}

// NewProcessErrorWithTarget creates a processing error for a specific target.
func NewProcessErrorWithTarget(code ErrorCode, message, target string) *ProcessError {
	return &ProcessError{Code: code, Message: message, Target: target}
}

// WrapProcessError wraps an existing error as a processing error.
func WrapProcessError(code ErrorCode, message string, err error) *ProcessError {
	return &ProcessError{Code: code, Message: message, Cause: err}
}

// StoreError represents document-store related errors.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new store error.
func NewStoreError(code ErrorCode, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

// WrapStoreError wraps an existing error as a store error.
func WrapStoreError(code ErrorCode, message, operation string, err error) *StoreError {
	return &StoreError{Code: code, Message: message, Operation: operation, Cause: err}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{Code: code, Message: message}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{Code: code, Message: message, Cause: err}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ProcessError:
		return e.Code
	case *StoreError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsRetryable determines if an error indicates a retryable condition.
func IsRetryable(err error) bool {
	switch GetCode(err) {
	case CodeTimeout, CodeStoreTimeout, CodeStoreConnection:
		return true
	default:
		return false
	}
}

// IsPerItem reports whether the error only affects a single record and the
// surrounding batch should continue.
func IsPerItem(err error) bool {
	switch GetCode(err) {
	case CodeMalformedResponse, CodeMissingDescription, CodeKnownBadSource,
		CodeFakeSample, CodeMalformedRecord:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrMalformedResponse creates an error for unparseable probe payloads.
func ErrMalformedResponse(target string) *ProcessError {
	return NewProcessErrorWithTarget(CodeMalformedResponse, "Response payload is not a status object", target)
}

// ErrKnownBadSource creates an error for responses from blocklisted addresses.
func ErrKnownBadSource(target string) *ProcessError {
	return NewProcessErrorWithTarget(CodeKnownBadSource, "Address is blocklisted for non-default ports", target)
}

// ErrStoreQuery creates an error for document store query failures.
func ErrStoreQuery(operation string, err error) *StoreError {
	return WrapStoreError(CodeStoreQuery, "Document store query failed", operation, err)
}

// ErrStoreWrite creates an error for document store write failures.
func ErrStoreWrite(operation string, err error) *StoreError {
	return WrapStoreError(CodeStoreWrite, "Document store write failed", operation, err)
}

// ErrStoreConnection creates an error for store connection failures.
func ErrStoreConnection(err error) *StoreError {
	return WrapStoreError(CodeStoreConnection, "Failed to connect to document store", "connect", err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}
