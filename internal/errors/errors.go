// Package errors provides standardized error handling for shiwake.
// It defines the error kinds used by the organizing engine, typed errors for
// files, configuration and rules, and helpers for creating, wrapping and
// classifying them.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// Common error constants for frequently occurring errors
var (
	ErrFileNotFound    = NewFileError("file not found", "", FileNotFound, nil)
	ErrFileAccess      = NewFileError("file access denied", "", FileAccessDenied, nil)
	ErrInvalidPath     = NewFileError("invalid file path", "", InvalidPath, nil)
	ErrInvalidConfig   = NewConfigError("invalid configuration", "", InvalidConfig, nil)
	ErrInvalidRule     = NewRuleError("invalid rule", "", InvalidRule, nil)
	ErrBatchInProgress = NewKind(BatchInProgress, "a batch is already running", nil)
	ErrUnclassified    = NewKind(ClassificationMiss, "unclassified", nil)
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	FileCreateFailed
	FileOperationFailed
	InvalidOperation
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	ConfigNotSet
	// Rule error kinds
	InvalidRule
	RuleNotFound
	// Batch error kinds
	ValidationFailed
	BatchInProgress
	ClassificationMiss
	PlanningFailed
	TransferFailed
	InsufficientSpace
)

var kindNames = map[ErrorKind]string{
	Unknown:             "unknown",
	FileNotFound:        "file_not_found",
	FileAccessDenied:    "access_denied",
	InvalidPath:         "invalid_path",
	FileCreateFailed:    "create_failed",
	FileOperationFailed: "operation_failed",
	InvalidOperation:    "invalid_operation",
	InvalidConfig:       "invalid_config",
	ConfigNotFound:      "config_not_found",
	ConfigNotSet:        "config_not_set",
	InvalidRule:         "invalid_rule",
	RuleNotFound:        "rule_not_found",
	ValidationFailed:    "validation",
	BatchInProgress:     "batch_in_progress",
	ClassificationMiss:  "classification_miss",
	PlanningFailed:      "planning",
	TransferFailed:      "transfer",
	InsufficientSpace:   "insufficient_space",
}

// String returns a short snake_case name for the kind.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kinded is implemented by every error type in this package.
type kinded interface {
	Kind() ErrorKind
}

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// Is matches another ApplicationError of the same kind and message, which
// lets the sentinel values above be used with errors.Is.
func (e *ApplicationError) Is(target error) bool {
	t, ok := target.(*ApplicationError)
	if !ok {
		return false
	}
	return t.kind == e.kind && t.msg == e.msg
}

// NewKind creates an error of the given kind wrapping err (which may be nil).
func NewKind(kind ErrorKind, msg string, err error) *ApplicationError {
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: kind,
	}
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// RuleError represents errors related to category rules
type RuleError struct {
	ApplicationError
	ruleName string
}

// NewRuleError creates a new rule error
func NewRuleError(msg string, ruleName string, kind ErrorKind, err error) *RuleError {
	return &RuleError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		ruleName: ruleName,
	}
}

// Error returns the rule error message
func (e *RuleError) Error() string {
	if e.ruleName != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.ruleName, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.ruleName)
	}
	return e.ApplicationError.Error()
}

// RuleName returns the rule name associated with the error
func (e *RuleError) RuleName() string {
	return e.ruleName
}

// ValidationError is returned synchronously when a batch request is
// rejected before any work starts.
type ValidationError struct {
	ApplicationError
	field string
}

// NewValidationError creates a validation error for the named request field.
func NewValidationError(field, msg string, err error) *ValidationError {
	return &ValidationError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: ValidationFailed,
		},
		field: field,
	}
}

// Error returns the validation error message
func (e *ValidationError) Error() string {
	if e.field != "" {
		if e.err != nil {
			return fmt.Sprintf("invalid %s: %s: %v", e.field, e.msg, e.err)
		}
		return fmt.Sprintf("invalid %s: %s", e.field, e.msg)
	}
	return e.ApplicationError.Error()
}

// Field returns the request field that failed validation
func (e *ValidationError) Field() string {
	return e.field
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: Unknown,
	}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		err:  err,
		kind: Unknown,
	}
}

// KindOf returns the kind of the first error in err's chain that carries
// one, skipping Unknown wrappers. It returns Unknown if none does.
func KindOf(err error) ErrorKind {
	for err != nil {
		if k, ok := err.(kinded); ok && k.Kind() != Unknown {
			return k.Kind()
		}
		err = errors.Unwrap(err)
	}
	return Unknown
}

// IsKind reports whether err's chain contains an error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if k, ok := err.(kinded); ok && k.Kind() == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	return IsKind(err, FileNotFound)
}

// IsFileAccessDenied checks if the error is a file access denied error
func IsFileAccessDenied(err error) bool {
	return IsKind(err, FileAccessDenied)
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsInvalidRule checks if the error is an invalid rule error
func IsInvalidRule(err error) bool {
	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.Kind() == InvalidRule
	}
	return false
}

// IsValidation checks if the error rejected a batch before it started
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// IsBatchInProgress checks if the error reports an overlapping batch start
func IsBatchInProgress(err error) bool {
	return IsKind(err, BatchInProgress)
}

// IsClassificationMiss checks if the error reports an unclassified file
func IsClassificationMiss(err error) bool {
	return IsKind(err, ClassificationMiss)
}

// IsPlanning checks if the error came from destination planning
func IsPlanning(err error) bool {
	return IsKind(err, PlanningFailed)
}

// IsTransfer checks if the error came from moving or copying a file
func IsTransfer(err error) bool {
	return IsKind(err, TransferFailed)
}

// IsInsufficientSpace checks if the error reports a full destination volume
func IsInsufficientSpace(err error) bool {
	return IsKind(err, InsufficientSpace)
}
