package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/mcncl/convertkit/internal/config"
	"github.com/mcncl/convertkit/internal/convert"
	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/jar"
	"github.com/mcncl/convertkit/internal/models"
	"github.com/mcncl/convertkit/internal/server"
)

// ConvertCmd converts one input, or several into an output directory
type ConvertCmd struct {
	Inputs []string `arg:"" optional:"" help:"Input files. Reads stdin when none are given." type:"path"`
	Input  string   `help:"Input file, same as a single positional argument." short:"i" type:"path"`
	Output string   `help:"Output file. Writes to stdout when omitted." short:"o" type:"path"`
	OutDir string   `help:"Output directory for batch conversion of several inputs." name:"out-dir" type:"path"`
	From   string   `help:"Source format. Taken from the file extension or detected when omitted." short:"f"`
	To     string   `help:"Target format." short:"t" required:""`
	Set    []string `help:"Set a value before writing, e.g. --set server.port=8080." placeholder:"PATH=VALUE" sep:"none"`

	Delimiter   string `help:"CSV delimiter (a character or 'tab')."`
	RootElement string `help:"XML root element name." name:"root-element"`
	TableName   string `help:"SQL table name." name:"table"`
	Dialect     string `help:"SQL dialect: mysql, postgresql, sqlite, sqlserver or oracle."`
	Sheet       string `help:"Excel sheet name."`
	Indent      int    `help:"Indentation for JSON, YAML, XML and Python output." default:"-1"`
	SortKeys    bool   `help:"Sort YAML mapping keys." name:"sort-keys"`
	NoHeader    bool   `help:"CSV and Excel inputs have no header row." name:"no-header"`
	NoCreate    bool   `help:"Omit CREATE TABLE from SQL output." name:"no-create"`
	Workers     int    `help:"Concurrent conversions in batch mode."`
}

func (c *ConvertCmd) overrides() config.Overrides {
	o := config.Overrides{
		Delimiter:   c.Delimiter,
		RootElement: c.RootElement,
		TableName:   c.TableName,
		Dialect:     c.Dialect,
		SheetName:   c.Sheet,
		Workers:     c.Workers,
	}
	if c.Indent >= 0 {
		indent := c.Indent
		o.Indent = &indent
	}
	if c.SortKeys {
		o.SortKeys = &c.SortKeys
	}
	if c.NoHeader {
		o.NoHeader = &c.NoHeader
	}
	if c.NoCreate {
		o.NoCreate = &c.NoCreate
	}
	return o
}

// Run executes the convert command
func (c *ConvertCmd) Run(ctx *Context) error {
	to, err := convert.ParseFormat(c.To, "target")
	if err != nil {
		return err
	}
	from := models.FormatUnknown
	if c.From != "" {
		if from, err = convert.ParseFormat(c.From, "source"); err != nil {
			return err
		}
	}

	opts, err := convert.OptionsFromConfig(ctx.Config)
	if err != nil {
		return err
	}
	converter := convert.New(convert.WithOptions(opts), convert.WithLogger(ctx.Logger))

	inputs := c.Inputs
	if c.Input != "" {
		inputs = append([]string{c.Input}, inputs...)
	}

	if len(inputs) > 1 {
		return c.runBatch(ctx, converter, inputs, from, to)
	}

	req := convert.Request{From: from, To: to, Overrides: c.Set}
	if len(inputs) == 1 {
		req.Name = inputs[0]
		if req.Data, err = readFile(inputs[0]); err != nil {
			return err
		}
		if from == models.FormatUnknown {
			req.From, _ = models.ParseFormat(filepath.Ext(inputs[0]))
		}
	} else {
		req.Name = "stdin"
		if req.Data, err = readStdin(ctx.Stdin); err != nil {
			return err
		}
	}

	res, err := converter.Convert(context.Background(), req)
	if err != nil {
		return err
	}
	return writeOutput(ctx, c.Output, res.Output)
}

func (c *ConvertCmd) runBatch(ctx *Context, converter *convert.Converter, inputs []string, from, to models.Format) error {
	if c.OutDir == "" {
		return errors.NewInputError("several inputs need --out-dir", nil)
	}
	if c.Output != "" {
		return errors.NewInputError("--output cannot be combined with several inputs; use --out-dir", nil)
	}
	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return errors.NewOutputError(fmt.Sprintf("failed to create '%s'", c.OutDir), err)
	}

	reqs := make([]convert.Request, 0, len(inputs))
	for _, path := range inputs {
		data, err := readFile(path)
		if err != nil {
			return err
		}
		req := convert.Request{Name: path, Data: data, From: from, To: to, Overrides: c.Set}
		if from == models.FormatUnknown {
			req.From, _ = models.ParseFormat(filepath.Ext(path))
		}
		reqs = append(reqs, req)
	}

	ctxSig, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := converter.ConvertBatch(ctxSig, reqs, ctx.Config.Batch.Workers)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(ctx.Stderr, "%s: %s\n", r.Name, errors.UserFriendlyError(r.Err))
			continue
		}
		target := filepath.Join(c.OutDir, convert.OutputName(r.Name, to))
		if err := os.WriteFile(target, r.Output, 0o644); err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", target), err)
		}
		fmt.Fprintf(ctx.Stderr, "%s -> %s\n", r.Name, target)
	}
	if failed > 0 {
		return errors.NewConversionError(fmt.Sprintf("%d of %d conversions failed", failed, len(results)), nil)
	}
	return nil
}

// DetectCmd prints detected formats
type DetectCmd struct {
	Inputs []string `arg:"" optional:"" help:"Files to inspect. Reads stdin when none are given." type:"path"`
}

// Run executes the detect command
func (d *DetectCmd) Run(ctx *Context) error {
	if len(d.Inputs) == 0 {
		data, err := readStdin(ctx.Stdin)
		if err != nil {
			return err
		}
		f, _ := convert.Detect(data)
		if _, err := fmt.Fprintln(ctx.Stdout, f); err != nil {
			return errors.NewOutputError("failed to write to stdout", err)
		}
		return nil
	}

	for _, path := range d.Inputs {
		data, err := readFile(path)
		if err != nil {
			return err
		}
		f, _ := convert.Detect(data)
		if _, err := fmt.Fprintf(ctx.Stdout, "%s: %s\n", path, f); err != nil {
			return errors.NewOutputError("failed to write to stdout", err)
		}
	}
	return nil
}

// JarCmd prints an archive analysis as JSON
type JarCmd struct {
	Path   string `arg:"" help:"JAR, WAR or ZIP file." type:"path"`
	Output string `help:"Output file. Writes to stdout when omitted." short:"o" type:"path"`
}

// Run executes the jar command
func (j *JarCmd) Run(ctx *Context) error {
	analyzer := jar.NewAnalyzer(jar.WithLogger(ctx.Logger))
	analysis, err := analyzer.AnalyzeFile(context.Background(), j.Path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return errors.NewOutputError("failed to encode analysis", err)
	}
	return writeOutput(ctx, j.Output, append(data, '\n'))
}

// ServeCmd runs the HTTP API
type ServeCmd struct {
	Addr string `help:"Listen address, overriding server.addr from the config file."`
}

// Run executes the serve command
func (s *ServeCmd) Run(ctx *Context) error {
	opts, err := convert.OptionsFromConfig(ctx.Config)
	if err != nil {
		return err
	}
	addr := ctx.Config.Server.Addr
	if s.Addr != "" {
		addr = s.Addr
	}

	srv := server.New(
		convert.New(convert.WithOptions(opts), convert.WithLogger(ctx.Logger)),
		jar.NewAnalyzer(jar.WithLogger(ctx.Logger)),
		server.WithLogger(ctx.Logger),
		server.WithMaxBodyBytes(ctx.Config.Server.MaxBodyBytes),
	)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(sigCtx, addr)
}

// VersionCmd prints the version
type VersionCmd struct{}

// Run executes the version command
func (v *VersionCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintf(ctx.Stdout, "convertkit version %s\n", Version)
	return err
}

// readFile reads an input file, rejecting missing and empty files
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(fmt.Sprintf("file not found: %s", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewInputError(fmt.Sprintf("failed to read file '%s'", path), err)
	}
	if len(data) == 0 {
		return nil, errors.NewInputError(fmt.Sprintf("file is empty: %s", path), errors.ErrFileEmpty)
	}
	return data, nil
}

// readStdin reads piped input. An interactive terminal is treated as no
// input.
func readStdin(stdin io.Reader) ([]byte, error) {
	if f, ok := stdin.(*os.File); ok {
		info, err := f.Stat()
		if err != nil {
			return nil, errors.NewInputError("failed to access stdin", err)
		}
		if info.Mode()&os.ModeCharDevice != 0 {
			return nil, errors.NewInputError("no input provided", errors.ErrNoInput)
		}
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, errors.NewInputError("failed to read from stdin", err)
	}
	if len(data) == 0 {
		return nil, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}
	return data, nil
}

// writeOutput writes to a file or to stdout
func writeOutput(ctx *Context, path string, data []byte) error {
	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", path), err)
		}
		fmt.Fprintf(ctx.Stderr, "Output written to %s\n", path)
		return nil
	}
	if _, err := ctx.Stdout.Write(data); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}
