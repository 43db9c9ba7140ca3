package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput       = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON      = errors.New("invalid JSON format")
	ErrMultipleJSON     = errors.New("multiple JSON values found at the root, only one is allowed")
	ErrFileNotFound     = errors.New("file not found")
	ErrFileEmpty        = errors.New("file is empty")
	ErrNoInput          = errors.New("no input provided: please specify a file or pipe data to stdin")
	ErrInvalidFilePath  = errors.New("invalid file path")
	ErrUnknownFormat    = errors.New("unknown or undetectable format")
	ErrUnsupportedShape = errors.New("data must be an object or an array of objects")
	ErrNoStatements     = errors.New("no INSERT statements found")
	ErrEOCDNotFound     = errors.New("end of central directory signature not found")
	ErrBadSignature     = errors.New("central directory signature mismatch")
	ErrTruncated        = errors.New("unexpected end of archive data")
	ErrUnreadable       = errors.New("archive buffer is empty or unreadable")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput            ErrorType = "input"
	ErrorTypeSyntax           ErrorType = "syntax"
	ErrorTypeStructural       ErrorType = "structural"
	ErrorTypeUnsupportedShape ErrorType = "unsupported_shape"
	ErrorTypeIO               ErrorType = "io"
	ErrorTypeConversion       ErrorType = "conversion"
	ErrorTypeOutput           ErrorType = "output"
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeUnknown          ErrorType = "unknown"
)

// AppError is an application-specific error with context
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func newError(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

// NewInputError creates a new error related to reading input
func NewInputError(message string, err error) *AppError {
	return newError(ErrorTypeInput, message, err)
}

// NewSyntaxError creates a new error for malformed source text
func NewSyntaxError(message string, err error) *AppError {
	return newError(ErrorTypeSyntax, message, err)
}

// NewStructuralError creates a new error for malformed binary structure
func NewStructuralError(message string, err error) *AppError {
	return newError(ErrorTypeStructural, message, err)
}

// NewUnsupportedShapeError creates a new error for data a target format cannot represent
func NewUnsupportedShapeError(message string, err error) *AppError {
	return newError(ErrorTypeUnsupportedShape, message, err)
}

// NewIOError creates a new error for unreadable buffers and files
func NewIOError(message string, err error) *AppError {
	return newError(ErrorTypeIO, message, err)
}

// NewConversionError creates a new error for a failed conversion request
func NewConversionError(message string, err error) *AppError {
	return newError(ErrorTypeConversion, message, err)
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return newError(ErrorTypeOutput, message, err)
}

// NewConfigError creates a new error for invalid configuration
func NewConfigError(message string, err error) *AppError {
	return newError(ErrorTypeConfig, message, err)
}

// TypeOf returns the ErrorType of the outermost AppError in err's chain.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.Err != nil && !isSentinel(appErr.Err) {
			msg = fmt.Sprintf("%s: %v", msg, appErr.Err)
		}
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", msg)
		case ErrorTypeSyntax:
			return fmt.Sprintf("Syntax error: %s", msg)
		case ErrorTypeStructural:
			return fmt.Sprintf("Archive structure error: %s", msg)
		case ErrorTypeUnsupportedShape:
			return fmt.Sprintf("Unsupported data shape: %s", msg)
		case ErrorTypeIO:
			return fmt.Sprintf("I/O error: %s", msg)
		case ErrorTypeConversion:
			return fmt.Sprintf("Conversion error: %s", msg)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", msg)
		case ErrorTypeConfig:
			return fmt.Sprintf("Configuration error: %s", msg)
		default:
			return fmt.Sprintf("Error: %s", msg)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide some data to convert."
	}
	if errors.Is(err, ErrInvalidJSON) {
		return "Error: The input contains invalid JSON. Please check your JSON syntax."
	}
	if errors.Is(err, ErrMultipleJSON) {
		return "Error: Multiple JSON values found. Please provide a single JSON object or array."
	}
	if errors.Is(err, ErrFileNotFound) {
		return "Error: The specified file could not be found. Please check the file path."
	}
	if errors.Is(err, ErrFileEmpty) {
		return "Error: The specified file is empty."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please specify a file or pipe data to stdin."
	}
	if errors.Is(err, ErrUnknownFormat) {
		return "Error: The input format could not be detected. Please pass --from explicitly."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}

var sentinels = []error{
	ErrEmptyInput, ErrInvalidJSON, ErrMultipleJSON, ErrFileNotFound, ErrFileEmpty,
	ErrNoInput, ErrInvalidFilePath, ErrUnknownFormat, ErrUnsupportedShape,
	ErrNoStatements, ErrEOCDNotFound, ErrBadSignature, ErrTruncated, ErrUnreadable,
}

func isSentinel(err error) bool {
	for _, s := range sentinels {
		if err == s {
			return true
		}
	}
	return false
}
