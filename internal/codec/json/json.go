package json

import (
	stdjson "encoding/json"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcncl/convertkit/internal/errors" // Custom errors package
	"github.com/mcncl/convertkit/internal/models"
)

// Options controls JSON output
type Options struct {
	// Indent is the number of spaces per nesting level; 0 produces compact output.
	Indent int
}

// DefaultOptions returns two-space indentation
func DefaultOptions() Options {
	return Options{Indent: 2}
}

// Parse converts JSON data from an io.Reader into a Value, keeping object key order
func Parse(reader io.Reader) (models.Value, error) {
	v, err := models.ReadJSON(reader)
	if err == nil {
		return v, nil
	}

	if stderrors.Is(err, errors.ErrEmptyInput) {
		return models.Value{}, errors.NewInputError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	if stderrors.Is(err, errors.ErrMultipleJSON) {
		return models.Value{}, errors.NewSyntaxError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	}
	var syntaxError *stdjson.SyntaxError
	if stderrors.As(err, &syntaxError) {
		return models.Value{}, errors.NewSyntaxError(
			fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
			err,
		)
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		return models.Value{}, errors.NewSyntaxError("unexpected end of JSON input", err)
	}
	return models.Value{}, errors.NewSyntaxError("failed to decode JSON", err)
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.Value, error) {
	if strings.TrimSpace(jsonString) == "" {
		return models.Value{}, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseFile parses JSON from a file path
func ParseFile(filePath string) (models.Value, error) {
	if strings.TrimSpace(filePath) == "" {
		return models.Value{}, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Value{}, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return models.Value{}, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return models.Value{}, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return models.Value{}, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	return Parse(file)
}

// Generate renders v as JSON text
func Generate(v models.Value, opts Options) string {
	return models.EncodeJSON(v, opts.Indent)
}
