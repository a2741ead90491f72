package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"harmony-kit/config"
	"harmony-kit/harmony"
	"harmony-kit/internal"
	"harmony-kit/logger"
	"harmony-kit/pipeline"
	"harmony-kit/types"
)

const usage = `Usage: harmony-kit [flags] <command> [args]

Commands:
  tokenize [file]                       split a completion into tokens
  parse [file]                          strictly parse a completion into a conversation
  render [file]                         render a JSON or YAML conversation
  detect [file]                         report whether input looks like Harmony output
  stream [--format sse|raw] [--chunk n] [file]
                                        print a channel snapshot for every chunk
  final [file]                          print the user-facing text
  version                               print build information

Input is read from stdin when file is omitted or "-".

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli carries what every subcommand needs
type cli struct {
	pipe   *pipeline.Pipeline
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("harmony-kit", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "YAML config file")
	envPath := flags.String("env", ".env", "env file with HARMONY_* and LOG_* settings")
	showMetrics := flags.Bool("metrics", false, "write metrics to stderr on exit")
	turnID := flags.String("turn-id", "", "turn id attached to every log entry")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}
	command, commandArgs := flags.Arg(0), flags.Args()[1:]

	if command == "version" {
		fmt.Fprintln(stdout, GetBuildInfo())
		return 0
	}

	cfg, err := config.LoadConfig(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	obsLogger, err := logger.NewObservabilityLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer obsLogger.Close()

	pipe, err := pipeline.New(cfg, obsLogger, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to create pipeline: %v\n", err)
		return 1
	}

	ctx := context.Background()
	if *turnID != "" {
		ctx = internal.WithTurnID(ctx, *turnID)
	}

	obsLogger.Debug(ctx, logger.ComponentConfig, logger.CategoryDebug, "Configuration loaded", map[string]interface{}{
		"command":           command,
		"encoding":          cfg.Encoding,
		"start_delimiter":   cfg.Delimiters.Start,
		"message_delimiter": cfg.Delimiters.Message,
		"end_delimiter":     cfg.Delimiters.End,
		"max_buffer_bytes":  cfg.Stream.MaxBufferBytes,
		"version":           GetVersionInfo(),
	})

	c := &cli{pipe: pipe, stdin: stdin, stdout: stdout, stderr: stderr}
	err = c.dispatch(ctx, command, commandArgs)

	if *showMetrics || cfg.MetricsEnabled {
		if werr := pipe.Metrics().WriteText(stderr); werr != nil {
			fmt.Fprintf(stderr, "Failed to write metrics: %v\n", werr)
		}
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "tokenize":
		return c.tokenize(ctx, args)
	case "parse":
		return c.parse(ctx, args)
	case "render":
		return c.render(ctx, args)
	case "detect":
		return c.detect(ctx, args)
	case "stream":
		return c.stream(ctx, args)
	case "final":
		return c.final(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *cli) tokenize(ctx context.Context, args []string) error {
	raw, err := c.readInput(args)
	if err != nil {
		return err
	}
	return c.writeJSON(c.pipe.Tokenize(ctx, string(raw)), true)
}

func (c *cli) parse(ctx context.Context, args []string) error {
	raw, err := c.readInput(args)
	if err != nil {
		return err
	}
	conv, err := c.pipe.ParseCompletion(ctx, string(raw))
	if err != nil {
		return err
	}
	return c.writeJSON(conv, true)
}

func (c *cli) render(ctx context.Context, args []string) error {
	raw, err := c.readInput(args)
	if err != nil {
		return err
	}
	conv, err := decodeConversation(raw)
	if err != nil {
		return err
	}
	out, err := c.pipe.Render(ctx, conv)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.stdout, out)
	return err
}

func (c *cli) detect(ctx context.Context, args []string) error {
	raw, err := c.readInput(args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.stdout, c.pipe.Detect(ctx, string(raw)))
	return err
}

func (c *cli) stream(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("stream", flag.ContinueOnError)
	flags.SetOutput(c.stderr)
	format := flags.String("format", string(pipeline.FormatSSE), "input format: sse or raw")
	chunk := flags.Int("chunk", 0, "chunk size in bytes for raw input")
	if err := flags.Parse(args); err != nil {
		return err
	}

	in, closeIn, err := c.openInput(flags.Args())
	if err != nil {
		return err
	}
	defer closeIn()

	opts := pipeline.StreamOptions{Format: pipeline.Format(*format), ChunkSize: *chunk}
	_, err = c.pipe.Stream(ctx, in, opts, func(snap harmony.Snapshot) error {
		return c.writeJSON(snap, false)
	})
	return err
}

func (c *cli) final(ctx context.Context, args []string) error {
	raw, err := c.readInput(args)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.stdout, c.pipe.FinalContent(ctx, string(raw)))
	return err
}

func (c *cli) openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return c.stdin, func() {}, nil
	}
	file, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	return file, func() { file.Close() }, nil
}

func (c *cli) readInput(args []string) ([]byte, error) {
	in, closeIn, err := c.openInput(args)
	if err != nil {
		return nil, err
	}
	defer closeIn()
	return io.ReadAll(in)
}

// writeJSON leaves markers such as <|end|> unescaped
func (c *cli) writeJSON(v any, indent bool) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// decodeConversation accepts a conversation as JSON or YAML.
func decodeConversation(raw []byte) (types.Conversation, error) {
	var conv types.Conversation
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &conv); err != nil {
			return conv, fmt.Errorf("failed to parse conversation JSON: %w", err)
		}
		return conv, nil
	}
	if err := yaml.Unmarshal(trimmed, &conv); err != nil {
		return conv, fmt.Errorf("failed to parse conversation YAML: %w", err)
	}
	return conv, nil
}
