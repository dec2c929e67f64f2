package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hanpama/batchql/internal/demo"
	"github.com/hanpama/batchql/internal/eventbus"
	"github.com/hanpama/batchql/internal/executor"
	"github.com/hanpama/batchql/internal/language"
	"github.com/hanpama/batchql/internal/otel"
	"github.com/hanpama/batchql/internal/schema"
)

const rootUsage = `batchql - batched GraphQL execution engine & tools

USAGE:
  batchql <command> [flags] [query-file]

COMMANDS:
  exec             Execute a query against the demo organisation schema
  tokens           Print the token stream of a query
  parse            Print the parsed document of a query as JSON
  sdl              Print the demo schema
  help             Show help for any command

Queries are read from -query, from the file argument, or from stdin when
the file argument is "-".
`

const execUsage = `exec FLAGS:
  -query <text>               Query text
  -exec.vars <json>           Variables as a JSON object
  -exec.operation <name>      Operation to run when the document has several
  -exec.timeout <duration>    Request timeout, e.g. 10s (default: 10s)
  -exec.pretty                Pretty-print the JSON result
  -log.level <level>          debug, info, warn or error (default: warn)
  -otel.endpoint <addr>       OTLP collector endpoint
  -otel.service <name>        OpenTelemetry service name (default: batchql)
`

const tokensUsage = `tokens FLAGS:
  -query <text>  Query text
`

const parseUsage = `parse FLAGS:
  -query <text>  Query text
`

const sdlUsage = `sdl FLAGS:
  -out <file>    Write the schema to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("batchql", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "exec":
		return cmdExec(cmdArgs)
	case "tokens":
		return cmdTokens(cmdArgs)
	case "parse":
		return cmdParse(cmdArgs)
	case "sdl":
		return cmdSDL(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "exec":
		fmt.Print(execUsage)
	case "tokens":
		fmt.Print(tokensUsage)
	case "parse":
		fmt.Print(parseUsage)
	case "sdl":
		fmt.Print(sdlUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

// readQuery returns inline when set, otherwise the contents of the file
// named by the first positional argument. "-" reads stdin.
func readQuery(inline string, positional []string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if len(positional) == 0 {
		return "", fmt.Errorf("no query given")
	}
	if positional[0] == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(positional[0])
	if err != nil {
		return "", fmt.Errorf("read query: %w", err)
	}
	return string(b), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid -log.level %q", s)
	}
	return level, nil
}

func cmdExec(args []string) error {
	query := ""
	vars := ""
	operation := ""
	timeout := 10 * time.Second
	pretty := false
	logLevel := "warn"
	otelEndpoint := ""
	otelService := "batchql"

	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&query, "query", query, "Query text")
	fs.StringVar(&vars, "exec.vars", vars, "Variables as a JSON object")
	fs.StringVar(&operation, "exec.operation", operation, "Operation name")
	fs.DurationVar(&timeout, "exec.timeout", timeout, "Request timeout")
	fs.BoolVar(&pretty, "exec.pretty", pretty, "Pretty-print the JSON result")
	fs.StringVar(&logLevel, "log.level", logLevel, "Log level")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, execUsage)
		return err
	}
	text, err := readQuery(query, fs.Args())
	if err != nil {
		fmt.Fprint(os.Stderr, execUsage)
		return err
	}
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}

	var variables map[string]any
	if vars != "" {
		dec := json.NewDecoder(strings.NewReader(vars))
		dec.UseNumber()
		if err := dec.Decode(&variables); err != nil {
			return fmt.Errorf("-exec.vars: %w", err)
		}
	}

	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	e := executor.New(demo.Schema(demo.Seed()), executor.WithLogger(logger))

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := e.Execute(ctx, executor.Request{Query: text, OperationName: operation, Variables: variables})
	if err != nil {
		return err
	}

	var out []byte
	if pretty {
		out, err = json.MarshalIndent(res, "", "  ")
	} else {
		out, err = json.Marshal(res)
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func cmdTokens(args []string) error {
	query := ""
	fs := flag.NewFlagSet("tokens", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&query, "query", query, "Query text")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, tokensUsage)
		return err
	}
	text, err := readQuery(query, fs.Args())
	if err != nil {
		fmt.Fprint(os.Stderr, tokensUsage)
		return err
	}
	tokens, err := language.Tokenize(text)
	if err != nil {
		return err
	}
	for _, tok := range tokens {
		fmt.Println(tok)
	}
	return nil
}

func cmdParse(args []string) error {
	query := ""
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&query, "query", query, "Query text")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, parseUsage)
		return err
	}
	text, err := readQuery(query, fs.Args())
	if err != nil {
		fmt.Fprint(os.Stderr, parseUsage)
		return err
	}
	doc, err := language.ParseQuery(text)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdSDL(args []string) error {
	outFile := ""
	fs := flag.NewFlagSet("sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outFile, "out", outFile, "Write the schema to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, sdlUsage)
		return err
	}
	sdl := schema.Render(demo.Schema(demo.NewStore()))
	if outFile == "" {
		fmt.Print(sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}
