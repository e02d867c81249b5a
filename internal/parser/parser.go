package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	stderrors "errors" // Standard errors package

	"github.com/mcncl/enphase-api/internal/errors" // Custom errors package
	"github.com/mcncl/enphase-api/internal/models"
)

// Parse reads exactly one JSON value from reader, keeping object keys in
// the order they appear.
func Parse(reader io.Reader) (models.Document, error) {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber() // Ensure numbers are read as json.Number

	root, err := decodeValue(decoder)
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.Document{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
		}
		return models.Document{}, classify(err)
	}

	// Anything other than EOF after the first value is either a second
	// value or garbage.
	if _, err := decoder.Token(); err == nil {
		return models.Document{}, errors.NewParsingError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	} else if !stderrors.Is(err, io.EOF) {
		return models.Document{}, errors.NewParsingError("invalid trailing data after first JSON value", err)
	}

	return models.Document{Root: root, Kind: models.KindOf(root)}, nil
}

// Value parses a single JSON value held in a string.
func Value(text string) (models.JSONValue, error) {
	doc, err := ParseString(text)
	if err != nil {
		return nil, err
	}
	return doc.Root, nil
}

func classify(err error) error {
	var syntaxError *json.SyntaxError
	if stderrors.As(err, &syntaxError) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
			errors.ErrInvalidJSON,
		)
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.NewParsingError("unexpected end of JSON input", errors.ErrInvalidJSON)
	}
	return errors.NewParsingError("failed to decode JSON", err)
}

func decodeValue(decoder *json.Decoder) (models.JSONValue, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := token.(json.Delim)
	if !ok {
		// string, json.Number, bool or nil
		return token, nil
	}

	switch delim {
	case '{':
		obj := models.NewJSONObject()
		for decoder.More() {
			keyToken, err := decoder.Token()
			if err != nil {
				return nil, unexpected(err)
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, not a string: %w", keyToken, errors.ErrInvalidJSON)
			}
			value, err := decodeValue(decoder)
			if err != nil {
				return nil, unexpected(err)
			}
			obj.Set(key, value)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, unexpected(err)
		}
		return obj, nil
	case '[':
		arr := models.JSONArray{}
		for decoder.More() {
			value, err := decodeValue(decoder)
			if err != nil {
				return nil, unexpected(err)
			}
			arr = append(arr, value)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, unexpected(err)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q: %w", delim, errors.ErrInvalidJSON)
	}
}

// unexpected turns EOF inside a container into ErrUnexpectedEOF so callers do
// not mistake a truncated document for an empty one.
func unexpected(err error) error {
	if stderrors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.Document, error) {
	if strings.TrimSpace(jsonString) == "" {
		return models.Document{}, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseFile parses JSON from a file path
func ParseFile(filePath string) (models.Document, error) {
	if strings.TrimSpace(filePath) == "" {
		return models.Document{}, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Document{}, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return models.Document{}, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return models.Document{}, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return models.Document{}, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	return Parse(file)
}
