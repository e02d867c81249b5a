package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name:     "with wrapped error",
			appError: NewFetchError("GET /ivp/meters failed", errors.New("connection refused")),
			expected: "fetch: GET /ivp/meters failed: connection refused",
		},
		{
			name:     "without wrapped error",
			appError: NewMetadataError("endpoint has no request", nil),
			expected: "metadata: endpoint has no request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_UnwrapAndIs(t *testing.T) {
	conflict := fmt.Errorf("conflict at X.a.type: %w", ErrSchemaConflict)
	appErr := NewAnalysisError("merging examples for Production", conflict)

	assert.Equal(t, conflict, appErr.Unwrap())
	assert.ErrorIs(t, appErr, ErrSchemaConflict)
	assert.ErrorIs(t, appErr, &AppError{Type: ErrorTypeAnalysis})
	assert.NotErrorIs(t, appErr, &AppError{Type: ErrorTypeFetch})
	assert.False(t, appErr.Is(errors.New("plain")))
}

func TestUserFriendlyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "input error",
			err:      NewInputError("failed to read file", nil),
			expected: "Input error: failed to read file",
		},
		{
			name:     "parsing error",
			err:      NewParsingError("JSON syntax error at offset 3", ErrInvalidJSON),
			expected: "JSON parsing error: JSON syntax error at offset 3",
		},
		{
			name:     "analysis error",
			err:      NewAnalysisError("array mixes objects", ErrMixedArray),
			expected: "Schema error: array mixes objects",
		},
		{
			name:     "conflict",
			err:      NewAnalysisError("Meters", fmt.Errorf("conflict at ..a.type: %w", ErrSchemaConflict)),
			expected: "Schema error: Meters (conflict at ..a.type: schema conflict). Fix the sample data or add a field_map override.",
		},
		{
			name:     "metadata error",
			err:      NewMetadataError("bad catalog", nil),
			expected: "Metadata error: bad catalog",
		},
		{
			name:     "fetch error",
			err:      NewFetchError("login failed", ErrLoginFailed),
			expected: "Gateway error: login failed",
		},
		{
			name:     "render error",
			err:      NewRenderError("table missing", nil),
			expected: "Rendering error: table missing",
		},
		{
			name:     "output error",
			err:      NewOutputError("failed to write output", nil),
			expected: "Output error: failed to write output",
		},
		{
			name:     "wrapped app error",
			err:      fmt.Errorf("endpoint Home: %w", NewOutputError("disk full", nil)),
			expected: "Output error: disk full",
		},
		{
			name:     "standard error - empty input",
			err:      ErrEmptyInput,
			expected: "Error: The input is empty. Please provide valid JSON data.",
		},
		{
			name:     "standard error - session expired",
			err:      ErrSessionExpired,
			expected: "Error: The gateway did not accept the configured token. Please refresh it.",
		},
		{
			name:     "unknown error",
			err:      errors.New("some unknown error"),
			expected: "Error: some unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UserFriendlyError(tt.err))
		})
	}
}
