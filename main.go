package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mcncl/enphase-api/internal/analyzer"
	"github.com/mcncl/enphase-api/internal/config"
	"github.com/mcncl/enphase-api/internal/docgen"
	"github.com/mcncl/enphase-api/internal/errors"
	"github.com/mcncl/enphase-api/internal/gateway"
	"github.com/mcncl/enphase-api/internal/generator"
	"github.com/mcncl/enphase-api/internal/logging"
	"github.com/mcncl/enphase-api/internal/metadata"
	"github.com/mcncl/enphase-api/internal/meters"
	"github.com/mcncl/enphase-api/internal/models"
	"github.com/mcncl/enphase-api/internal/parser"
	"github.com/mcncl/enphase-api/internal/schema"
	"github.com/mcncl/enphase-api/internal/store"
	"github.com/mcncl/enphase-api/internal/watcher"
)

// CLI defines the command-line interface
var CLI struct {
	Config   string `help:"Path to a config file. Defaults to the nearest .enphase-api.yml." short:"c" type:"path"`
	Metadata string `help:"Path to the endpoint metadata catalog." short:"m" type:"path"`
	TypeMap  string `help:"Path to a custom type map shared by every endpoint." type:"path"`
	Output   string `help:"Directory the documents are written to." short:"o" type:"path"`
	Host     string `help:"Gateway address."`
	Token    string `help:"Gateway JWT."`
	Offline  bool   `help:"Never contact the gateway; use canned and cached example responses only."`
	NoCache  bool   `help:"Do not cache example responses."`
	Refresh  bool   `help:"Fetch example responses again even when cached."`
	LogLevel string `help:"Log level (debug, info, warn, error)." short:"l"`
	Debug    bool   `help:"Enable debug logging." short:"d"`
	Version  bool   `help:"Show version information." short:"v"`

	Docs   DocsCmd   `cmd:"" default:"1" help:"Generate the endpoint documents and index."`
	Infer  InferCmd  `cmd:"" help:"Infer the tables of a single JSON sample."`
	Schema SchemaCmd `cmd:"" help:"Print the JSON Schema of the metadata files."`
	Watch  WatchCmd  `cmd:"" help:"Regenerate the documents whenever the metadata changes."`
	Meters MetersCmd `cmd:"" help:"Stream meter readings to MQTT, SQLite and Prometheus."`
	Trust  TrustCmd  `cmd:"" help:"Download and pin the gateway certificate."`
}

// Context holds the runtime context
type Context struct {
	Debug  bool
	Config *config.Config
	Log    *logrus.Logger
	Stdout io.Writer

	ctx context.Context
}

func (c *Context) context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Context) logger() *logrus.Logger {
	if c.Log == nil {
		return logging.Discard()
	}
	return c.Log
}

func (c *Context) stdout() io.Writer {
	if c.Stdout == nil {
		return os.Stdout
	}
	return c.Stdout
}

// Version information
const (
	Version = "0.1.0"
)

func main() {
	// Parse CLI arguments with Kong
	parser := kong.Must(&CLI,
		kong.Name("enphase-api"),
		kong.Description("Documents the local Enphase IQ Gateway API and streams its meter readings"),
		kong.UsageOnError(),
	)

	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		// If there's an error parsing arguments, the usage will already be shown by kong.UsageOnError()
		os.Exit(1)
	}

	// Show version and exit if requested
	if CLI.Version {
		fmt.Printf("enphase-api version %s\n", Version)
		return
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Results of infer and schema go to stdout, so their logs must not.
	logOut := io.Writer(os.Stdout)
	if cmd := kctx.Command(); strings.HasPrefix(cmd, "infer") || strings.HasPrefix(cmd, "schema") {
		logOut = os.Stderr
	}

	ctx, err := newContext(sigCtx, logOut)
	if err == nil {
		err = kctx.Run(ctx)
	}
	if err != nil {
		// Use our custom error handling to provide user-friendly error messages
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: enphase-api --help\n")
		stop()
		os.Exit(1)
	}
}

// newContext loads the configuration, letting flags win over the file and
// the environment.
func newContext(ctx context.Context, logOut io.Writer) (*Context, error) {
	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	overrides := config.Overrides{
		Metadata:  CLI.Metadata,
		TypeMap:   CLI.TypeMap,
		OutputDir: CLI.Output,
		Host:      CLI.Host,
		Token:     CLI.Token,
		LogLevel:  CLI.LogLevel,
	}
	if CLI.Debug {
		overrides.LogLevel = "debug"
	}
	if CLI.Offline {
		overrides.Offline = &CLI.Offline
	}
	if CLI.NoCache {
		overrides.NoCache = &CLI.NoCache
	}
	if CLI.Refresh {
		overrides.Refresh = &CLI.Refresh
	}

	cfg, err := config.LoadConfigWithCLI(configPath, overrides)
	if err != nil {
		return nil, errors.NewInputError(fmt.Sprintf("failed to load config '%s'", configPath), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewInputError("invalid configuration", err)
	}

	log := logging.New(cfg.Log.Level, logOut)
	if configPath != "" {
		log.WithField("path", configPath).Debug("Loaded config")
	}

	return &Context{
		Debug:  CLI.Debug,
		Config: cfg,
		Log:    log,
		Stdout: os.Stdout,
		ctx:    ctx,
	}, nil
}

// DocsCmd generates the documentation once.
type DocsCmd struct{}

func (d *DocsCmd) Run(ctx *Context) error {
	rebuild, closeFn, err := documenter(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return rebuild(ctx.context())
}

// WatchCmd regenerates the documentation when the catalog or type map
// changes.
type WatchCmd struct {
	Debounce time.Duration `help:"Wait this long after the last change before rebuilding." default:"250ms"`
}

func (w *WatchCmd) Run(ctx *Context) error {
	log := ctx.logger()

	rebuild, closeFn, err := documenter(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := rebuild(ctx.context()); err != nil {
		log.WithError(err).Error("Initial build failed")
	}

	fw, err := watcher.New([]string{ctx.Config.Metadata, ctx.Config.TypeMap}, w.Debounce, log)
	if err != nil {
		return errors.NewInputError("failed to watch the metadata", err)
	}
	defer fw.Close()

	log.WithField("metadata", ctx.Config.Metadata).Info("Watching for metadata changes")
	return fw.Run(ctx.context(), rebuild)
}

// documenter prepares the sample source once and returns a function that
// reloads the metadata and rebuilds every document.
func documenter(ctx *Context) (func(context.Context) error, func(), error) {
	cfg := ctx.Config
	log := ctx.logger()

	source, closeFn, err := sampleSource(ctx)
	if err != nil {
		return nil, nil, err
	}

	rebuild := func(c context.Context) error {
		catalog, err := metadata.LoadCatalog(cfg.Metadata)
		if err != nil {
			return err
		}

		opts := []docgen.Option{docgen.WithLogger(log)}
		if source != nil {
			opts = append(opts, docgen.WithSource(source))
		}
		if cfg.TypeMap != "" {
			typeMap, err := metadata.LoadTypeMap(cfg.TypeMap)
			if err != nil {
				return err
			}
			opts = append(opts, docgen.WithTypeMap(typeMap))
		}

		return docgen.NewBuilder(cfg, opts...).Build(c, catalog)
	}
	return rebuild, closeFn, nil
}

// sampleSource returns where live example responses come from: the gateway,
// the response cache in front of it, the cache alone when offline, or
// nothing.
func sampleSource(ctx *Context) (docgen.SampleSource, func(), error) {
	cfg := ctx.Config
	log := ctx.logger()

	var next docgen.SampleSource
	if !cfg.Offline {
		gw, err := gateway.New(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Gateway.Token != "" {
			if err := gw.Login(ctx.context(), cfg.Gateway.Token); err != nil {
				return nil, nil, err
			}
		} else {
			log.Warn("No gateway token, examples needing authentication will fail")
		}
		next = docgen.GatewaySource{Gateway: gw, Log: log}
	}

	if !cfg.Cache.Enabled {
		return next, func() {}, nil
	}

	st, err := store.Open(cfg.Cache.Path)
	if err != nil {
		return nil, nil, errors.NewOutputError(fmt.Sprintf("failed to open cache '%s'", cfg.Cache.Path), err)
	}
	closeFn := func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("Failed to close cache")
		}
	}
	return docgen.CachedSource{Store: st, Next: next, Refresh: cfg.Cache.Refresh, Log: log}, closeFn, nil
}

// InferCmd prints the tables inferred from one JSON sample.
type InferCmd struct {
	Input       string `arg:"" optional:"" help:"Path to a JSON sample. If not specified, reads from stdin." type:"path"`
	Format      string `help:"Output format." enum:"adoc,json" default:"adoc" short:"f"`
	FieldMap    string `help:"Path to a JSON field_map applied while inferring." type:"path"`
	Write       string `help:"Path to write the result to. If not specified, writes to stdout." short:"w" type:"path"`
	Interactive bool   `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
}

func (i *InferCmd) Run(ctx *Context) error {
	return runInfer(ctx, i)
}

// runInfer executes the infer pipeline
func runInfer(ctx *Context, cmd *InferCmd) error {
	// 1. Parse JSON input
	doc, err := parseInput(cmd)
	if err != nil {
		return err
	}

	var overrides *schema.TableSet
	if cmd.FieldMap != "" {
		if overrides, err = loadFieldMap(cmd.FieldMap); err != nil {
			return err
		}
	}

	// 2. Infer the tables
	set, err := analyzer.NewAnalyzerWithConfig(ctx.Config).Analyze(doc, overrides)
	if err != nil {
		return errors.NewAnalysisError("failed to infer tables", err)
	}

	// 3. Render them
	var out string
	switch cmd.Format {
	case "json":
		data, err := json.MarshalIndent(set, "", "    ")
		if err != nil {
			return errors.NewRenderError("failed to encode tables", err)
		}
		out = string(data)
	default:
		var typeMap metadata.TypeMap
		if ctx.Config.TypeMap != "" {
			if typeMap, err = metadata.LoadTypeMap(ctx.Config.TypeMap); err != nil {
				return err
			}
		}
		out = generator.NewGeneratorWithConfig(ctx.Config).TablesSection(set, typeMap, false, 3)
	}

	// 4. Output the result
	return writeOutput(ctx, cmd.Write, out)
}

func loadFieldMap(path string) (*schema.TableSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewInputError(fmt.Sprintf("failed to read field map '%s'", path), err)
	}
	set := schema.NewTableSet()
	if err := json.Unmarshal(data, set); err != nil {
		return nil, errors.NewMetadataError(fmt.Sprintf("invalid field map '%s'", path), err)
	}
	return set, nil
}

// parseInput reads JSON from file or stdin
func parseInput(cmd *InferCmd) (models.Document, error) {
	if cmd.Input != "" {
		return parser.ParseFile(cmd.Input)
	}

	stdinInfo, err := os.Stdin.Stat()
	if err != nil {
		return models.Document{}, errors.NewInputError("failed to access stdin", err)
	}

	if (stdinInfo.Mode() & os.ModeCharDevice) != 0 {
		// Terminal is interactive (not piped)
		if cmd.Interactive {
			return readInteractiveInput(os.Stdin)
		}
		return models.Document{}, errors.NewInputError("no input provided", errors.ErrNoInput)
	}

	jsonData, err := io.ReadAll(os.Stdin)
	if err != nil {
		return models.Document{}, errors.NewInputError("failed to read from stdin", err)
	}

	if len(jsonData) == 0 {
		return models.Document{}, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}

	return parser.ParseString(string(jsonData))
}

// writeOutput writes the result to a file or stdout
func writeOutput(ctx *Context, path, content string) error {
	if path != "" {
		err := os.WriteFile(path, []byte(content), 0644)
		if err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", path), err)
		}
		fmt.Fprintf(os.Stderr, "Output written to %s\n", path)
		return nil
	}

	_, err := fmt.Fprintln(ctx.stdout(), strings.TrimSpace(content))
	if err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}

// readInteractiveInput lets users paste JSON and signal completion with
// Ctrl+D (EOF)
func readInteractiveInput(in io.Reader) (models.Document, error) {
	fmt.Fprintln(os.Stderr, "enphase-api Interactive Mode")
	fmt.Fprintln(os.Stderr, "Paste a JSON response below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	reader := bufio.NewReader(in)
	var jsonBuilder strings.Builder

	for {
		line, err := reader.ReadString('\n')
		jsonBuilder.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Document{}, errors.NewInputError("error reading input", err)
		}
	}

	jsonData := jsonBuilder.String()
	if len(jsonData) == 0 {
		return models.Document{}, errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}

	fmt.Fprintln(os.Stderr, "\nProcessing JSON...")
	return parser.ParseString(jsonData)
}

// SchemaCmd prints the JSON Schema of the metadata catalog or type map.
type SchemaCmd struct {
	TypeMap bool `help:"Print the schema of a custom type map instead of the catalog."`
}

func (s *SchemaCmd) Run(ctx *Context) error {
	sch := metadata.CatalogSchema()
	if s.TypeMap {
		sch = metadata.TypeMapSchema()
	}
	data, err := json.MarshalIndent(sch, "", "  ")
	if err != nil {
		return errors.NewRenderError("failed to encode schema", err)
	}
	return writeOutput(ctx, "", string(data))
}

// TrustCmd saves the gateway's certificate so later connections are pinned
// to it.
type TrustCmd struct{}

func (t *TrustCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	if err := gateway.Trust(ctx.context(), cfg.Gateway.Host, cfg.Gateway.CertFile); err != nil {
		return err
	}
	ctx.logger().WithFields(logrus.Fields{
		"host": cfg.Gateway.Host,
		"path": cfg.Gateway.CertFile,
	}).Info("Saved gateway certificate")
	return nil
}

// MetersCmd streams meter readings until interrupted.
type MetersCmd struct{}

func (m *MetersCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	log := ctx.logger()
	c := ctx.context()

	if cfg.Gateway.Token == "" {
		return errors.NewInputError("a gateway token is required to read the meters", errors.ErrNoInput)
	}

	gw, err := gateway.New(cfg, log)
	if err != nil {
		return err
	}
	if err := gw.Login(c, cfg.Gateway.Token); err != nil {
		return err
	}

	var sinks []meters.Sink

	if cfg.Meters.MQTT.Broker != "" {
		client, err := meters.ConnectMQTT(cfg.Meters.MQTT, log)
		if err != nil {
			return errors.NewOutputError("failed to connect to the MQTT broker", err)
		}
		defer client.Disconnect(250)
		sinks = append(sinks, meters.NewMQTTSink(client, cfg.Meters.MQTT))
	}

	if cfg.Meters.Database != "" {
		st, err := store.Open(cfg.Meters.Database)
		if err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to open database '%s'", cfg.Meters.Database), err)
		}
		defer st.Close()
		sinks = append(sinks, meters.NewSQLiteSink(st))
	}

	if cfg.Meters.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		sink, err := meters.NewPrometheusSink(reg)
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)

		go func() {
			if err := meters.ServeMetrics(c, cfg.Meters.MetricsAddr, reg, log); err != nil {
				log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	if len(sinks) == 0 {
		return errors.NewInputError("no meter sinks configured: set meters.mqtt.broker, meters.database or meters.metrics_addr", errors.ErrNoInput)
	}

	return meters.NewPoller(gw, cfg.Meters, log, sinks...).Run(c)
}
