package errors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	ErrEmptyInput      = errors.New("input is empty or contains only whitespace")
	ErrInvalidJSON     = errors.New("invalid JSON format")
	ErrMultipleJSON    = errors.New("multiple JSON values found at the root, only one is allowed")
	ErrFileNotFound    = errors.New("file not found")
	ErrFileEmpty       = errors.New("file is empty")
	ErrNoInput         = errors.New("no input provided: please name a JSON file or pipe JSON data to stdin")
	ErrInvalidFilePath = errors.New("invalid file path")
	ErrSchemaConflict  = errors.New("schema conflict")
	ErrMixedArray      = errors.New("array mixes objects with other values")
	ErrNoSampleSource  = errors.New("no sample source available")
	ErrSessionExpired  = errors.New("gateway session expired or unauthorised")
	ErrLoginFailed     = errors.New("gateway rejected the token")
)

// ErrorType categorizes errors
type ErrorType string

const (
	ErrorTypeInput    ErrorType = "input"
	ErrorTypeParsing  ErrorType = "parsing"
	ErrorTypeAnalysis ErrorType = "analysis"
	ErrorTypeMetadata ErrorType = "metadata"
	ErrorTypeFetch    ErrorType = "fetch"
	ErrorTypeRender   ErrorType = "render"
	ErrorTypeOutput   ErrorType = "output"
	ErrorTypeUnknown  ErrorType = "unknown"
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

// Is reports whether target is an *AppError of the same type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func newError(t ErrorType, message string, err error) *AppError {
	return &AppError{
		Type:    t,
		Message: message,
		Err:     err,
	}
}

// NewInputError creates a new error related to input processing
func NewInputError(message string, err error) *AppError {
	return newError(ErrorTypeInput, message, err)
}

// NewParsingError creates a new error related to JSON parsing
func NewParsingError(message string, err error) *AppError {
	return newError(ErrorTypeParsing, message, err)
}

// NewAnalysisError creates a new error raised while inferring or merging schemas
func NewAnalysisError(message string, err error) *AppError {
	return newError(ErrorTypeAnalysis, message, err)
}

// NewMetadataError creates a new error for malformed endpoint metadata or type maps
func NewMetadataError(message string, err error) *AppError {
	return newError(ErrorTypeMetadata, message, err)
}

// NewFetchError creates a new error for failed gateway requests
func NewFetchError(message string, err error) *AppError {
	return newError(ErrorTypeFetch, message, err)
}

// NewRenderError creates a new error related to document rendering
func NewRenderError(message string, err error) *AppError {
	return newError(ErrorTypeRender, message, err)
}

// NewOutputError creates a new error related to output processing
func NewOutputError(message string, err error) *AppError {
	return newError(ErrorTypeOutput, message, err)
}

// UserFriendlyError returns a user-friendly error message
func UserFriendlyError(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case ErrorTypeInput:
			return fmt.Sprintf("Input error: %s", appErr.Message)
		case ErrorTypeParsing:
			return fmt.Sprintf("JSON parsing error: %s", appErr.Message)
		case ErrorTypeAnalysis:
			if errors.Is(appErr.Err, ErrSchemaConflict) {
				return fmt.Sprintf("Schema error: %s (%v). Fix the sample data or add a field_map override.", appErr.Message, appErr.Err)
			}
			return fmt.Sprintf("Schema error: %s", appErr.Message)
		case ErrorTypeMetadata:
			return fmt.Sprintf("Metadata error: %s", appErr.Message)
		case ErrorTypeFetch:
			return fmt.Sprintf("Gateway error: %s", appErr.Message)
		case ErrorTypeRender:
			return fmt.Sprintf("Rendering error: %s", appErr.Message)
		case ErrorTypeOutput:
			return fmt.Sprintf("Output error: %s", appErr.Message)
		default:
			return fmt.Sprintf("Error: %s", appErr.Message)
		}
	}

	// Handle standard errors
	if errors.Is(err, ErrEmptyInput) {
		return "Error: The input is empty. Please provide valid JSON data."
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
		return "Error: The specified file is empty. Please provide a file with valid JSON content."
	}
	if errors.Is(err, ErrNoInput) {
		return "Error: No input provided. Please name a JSON file, pipe JSON data to stdin or use --interactive."
	}
	if errors.Is(err, ErrInvalidFilePath) {
		return "Error: Invalid file path. Please provide a valid file path."
	}
	if errors.Is(err, ErrSchemaConflict) {
		return fmt.Sprintf("Error: %v. Fix the sample data or add a field_map override.", err)
	}
	if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrLoginFailed) {
		return "Error: The gateway did not accept the configured token. Please refresh it."
	}

	// Generic error message for unknown errors
	return fmt.Sprintf("Error: %v", err)
}
