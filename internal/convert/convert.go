// Package convert routes documents between formats through the codec
// packages, detecting the source format when it is not given.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mcncl/convertkit/internal/detect"
	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// Request is one document to convert. An empty or unknown From triggers
// detection. Overrides are "path=value" assignments applied to the decoded
// tree before encoding.
type Request struct {
	Name      string
	Data      []byte
	From      models.Format
	To        models.Format
	Overrides []string
}

// Result is the outcome of one Request. Err is set instead of Output when
// the conversion failed.
type Result struct {
	Name     string
	From     models.Format
	To       models.Format
	Output   []byte
	Duration time.Duration
	Err      error
}

// Converter holds codec options and a logger. It is safe for concurrent use.
type Converter struct {
	opts   Options
	logger *slog.Logger
}

// Option configures a Converter
type Option func(*Converter)

// WithOptions replaces the codec options
func WithOptions(opts Options) Option {
	return func(c *Converter) {
		c.opts = opts
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Converter with default codec options
func New(opts ...Option) *Converter {
	c := &Converter{opts: DefaultOptions(), logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Options returns the codec options in use
func (c *Converter) Options() Options {
	return c.opts
}

// DecodeText turns raw input into a string. A UTF-8 or UTF-16 byte order
// mark selects the encoding and is removed; otherwise the input is read as
// UTF-8 with invalid sequences replaced.
func DecodeText(data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", errors.NewInputError("input is not valid text", err)
	}
	return string(out), nil
}

// Detect resolves the format of data, or fails with ErrUnknownFormat.
func Detect(data []byte) (models.Format, error) {
	if f := detect.DetectBytes(data); f != models.FormatUnknown {
		return f, nil
	}
	// DetectBytes does not see past a UTF-16 byte order mark.
	text, err := DecodeText(data)
	if err == nil {
		if f := detect.DetectFormat(text); f != models.FormatUnknown {
			return f, nil
		}
	}
	return models.FormatUnknown, errors.NewInputError("could not detect the input format", errors.ErrUnknownFormat)
}

// Decode parses data as from, detecting the format when from is empty or
// unknown. The resolved format is returned alongside the value.
func (c *Converter) Decode(data []byte, from models.Format) (models.Value, models.Format, error) {
	if from == "" || from == models.FormatUnknown {
		detected, err := Detect(data)
		if err != nil {
			return models.Value{}, models.FormatUnknown, err
		}
		c.logger.Debug("detected input format", "format", detected, "bytes", len(data))
		from = detected
	}

	cd, ok := registry[from]
	if !ok {
		return models.Value{}, from, errors.NewInputError(fmt.Sprintf("unsupported input format '%s'", from), errors.ErrUnknownFormat)
	}
	v, err := cd.decode(data, c.opts)
	if err != nil {
		return models.Value{}, from, err
	}
	return v, from, nil
}

// Encode renders v as to.
func (c *Converter) Encode(v models.Value, to models.Format) ([]byte, error) {
	cd, ok := registry[to]
	if !ok {
		return nil, errors.NewConversionError(fmt.Sprintf("unsupported output format '%s'", to), errors.ErrUnknownFormat)
	}
	return cd.encode(v, c.opts)
}

// Convert runs one request. Failures are reported both as the returned
// error and in Result.Err.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res := &Result{Name: req.Name, From: req.From, To: req.To}
	fail := func(err error) (*Result, error) {
		res.Err = err
		res.Duration = time.Since(start)
		c.logger.Debug("conversion failed", "name", req.Name, "from", res.From, "to", res.To, "error", err)
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return fail(errors.NewConversionError("conversion cancelled", err))
	}

	v, from, err := c.Decode(req.Data, req.From)
	res.From = from
	if err != nil {
		return fail(err)
	}

	for _, expr := range req.Overrides {
		path, repl, err := ParseOverride(expr)
		if err != nil {
			return fail(err)
		}
		if v, err = models.Replace(v, path, repl, c.logger); err != nil {
			return fail(errors.NewConversionError(fmt.Sprintf("cannot set '%s'", path), err))
		}
	}

	out, err := c.Encode(v, req.To)
	if err != nil {
		return fail(err)
	}

	res.Output = out
	res.Duration = time.Since(start)
	c.logger.Debug("converted document",
		"name", req.Name,
		"from", from,
		"to", req.To,
		"in_bytes", len(req.Data),
		"out_bytes", len(out),
		"duration", res.Duration)
	return res, nil
}

// ConvertBatch converts reqs on a pool of workers. Results keep the order of
// reqs; per-request failures are in Result.Err. Requests not yet submitted
// when ctx is cancelled fail with the context error.
func (c *Converter) ConvertBatch(ctx context.Context, reqs []Request, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, errors.NewConversionError("failed to start worker pool", err)
	}
	defer pool.Release()

	results := make([]Result, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Name: req.Name, From: req.From, To: req.To,
				Err: errors.NewConversionError("conversion cancelled", err)}
			continue
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{Name: req.Name, From: req.From, To: req.To,
						Err: errors.NewConversionError(fmt.Sprintf("converter panicked: %v", r), nil)}
				}
			}()
			res, _ := c.Convert(ctx, req)
			results[i] = *res
		})
		if submitErr != nil {
			wg.Done()
			results[i] = Result{Name: req.Name, From: req.From, To: req.To,
				Err: errors.NewConversionError("failed to schedule conversion", submitErr)}
		}
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	c.logger.Info("batch finished", "documents", len(reqs), "failed", failed, "workers", workers)
	return results, nil
}

// ParseFormat resolves a user-supplied format name. role names the
// argument in the error, e.g. "source" or "target".
func ParseFormat(name, role string) (models.Format, error) {
	if f, ok := models.ParseFormat(name); ok {
		return f, nil
	}
	names := make([]string, 0, len(models.Formats()))
	for _, f := range models.Formats() {
		names = append(names, string(f))
	}
	return models.FormatUnknown, errors.NewInputError(
		fmt.Sprintf("unknown %s format '%s' (expected one of: %s)", role, name, strings.Join(names, ", ")),
		errors.ErrUnknownFormat)
}

// ParseOverride splits "path=value". The value is read as JSON when it
// looks like a JSON string, array or object, and coerced as a scalar
// otherwise.
func ParseOverride(expr string) (string, models.Value, error) {
	path, raw, ok := strings.Cut(expr, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return "", models.Value{}, errors.NewInputError(fmt.Sprintf("override '%s' must have the form path=value", expr), nil)
	}

	raw = strings.TrimSpace(raw)
	if raw != "" && strings.ContainsRune(`{["`, rune(raw[0])) {
		v, err := models.ReadJSON(strings.NewReader(raw))
		if err != nil {
			return "", models.Value{}, errors.NewInputError(fmt.Sprintf("override '%s' has an invalid JSON value", path), err)
		}
		return path, v, nil
	}
	return path, models.CoerceScalar(raw, models.DefaultRules), nil
}

// OutputName derives the file name for a converted input
func OutputName(input string, to models.Format) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + to.Extension()
}
