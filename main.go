package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/mcncl/convertkit/internal/config"
	"github.com/mcncl/convertkit/internal/errors"
)

// CLI defines the command-line interface
var CLI struct {
	Config    string `help:"Path to a config file. Defaults to the nearest .convertkit.yml." short:"c" type:"path"`
	Debug     bool   `help:"Enable debug logging." short:"d"`
	LogFormat string `help:"Log output format: text or json." name:"log-format"`

	Convert ConvertCmd `cmd:"" help:"Convert documents between formats."`
	Detect  DetectCmd  `cmd:"" help:"Print the detected format of each input."`
	Jar     JarCmd     `cmd:"" help:"Inspect the structure of a JAR or ZIP archive."`
	Serve   ServeCmd   `cmd:"" help:"Serve the conversion API over HTTP."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Context holds the runtime context shared by all commands
type Context struct {
	Config *config.Config
	Logger *slog.Logger
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Version information
const (
	Version = "0.2.0"
)

func main() {
	// Parse CLI arguments with Kong
	parser := kong.Must(&CLI,
		kong.Name("convertkit"),
		kong.Description("Convert between JSON, CSV, XML, YAML, TOML, INI, properties, SQL, Python dicts and Excel"),
		kong.UsageOnError(),
	)

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		// If there's an error parsing arguments, the usage will already be shown by kong.UsageOnError()
		parser.FatalIfErrorf(err)
	}

	ctx, err := newContext(kctx.Command(), os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		os.Exit(1)
	}

	if err := kctx.Run(ctx); err != nil {
		// Use our custom error handling to provide user-friendly error messages
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		os.Exit(1)
	}
}

// newContext loads configuration, applies the parsed flags and builds the
// logger. Codec flags only apply to the convert command.
func newContext(command string, stdin io.Reader, stdout, stderr io.Writer) (*Context, error) {
	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile("")
	}

	var overrides config.Overrides
	if strings.HasPrefix(command, "convert") {
		overrides = CLI.Convert.overrides()
	}
	overrides.LogFormat = CLI.LogFormat
	if CLI.Debug {
		overrides.LogLevel = "debug"
	}

	cfg, err := config.LoadConfigWithCLI(configPath, overrides)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Log, stderr)
	if configPath != "" {
		logger.Debug("loaded config", "path", configPath)
	}

	return &Context{
		Config: cfg,
		Logger: logger,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
