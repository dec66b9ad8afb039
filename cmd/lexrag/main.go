// Package main is the lexrag CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/cli"
	"github.com/hyperjump/lexrag/internal/config"
	"github.com/hyperjump/lexrag/internal/embedding"
	"github.com/hyperjump/lexrag/internal/extract"
	"github.com/hyperjump/lexrag/internal/generation"
	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/indexer"
	"github.com/hyperjump/lexrag/internal/metrics"
	"github.com/hyperjump/lexrag/internal/rag"
	"github.com/hyperjump/lexrag/internal/retrieval"
	"github.com/hyperjump/lexrag/internal/server"
	"github.com/hyperjump/lexrag/internal/vector"
	"github.com/hyperjump/lexrag/internal/watcher"
	"github.com/hyperjump/lexrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/lexrag/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; when neither exists the built-in defaults are used.
// Returns the config and the path that was actually loaded (empty for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "index":
		runIndex()
	case "ask":
		runAsk()
	case "server":
		runServer()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("lexrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every subcommand.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if debugFlag {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	label := fs.String("label", "", "source label for every chunk (default: file name without extension)")
	probe := fs.String("probe", "", "question to retrieve against the new index after it is persisted")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lexrag index [flags] <file-or-directory>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger, resolved := setup(*configPath, *debug)
	defer logger.Sync()
	if err := cfg.ValidateIndexing(); err != nil {
		logger.Fatal("invalid configuration", zap.String("config_path", resolved), zap.Error(err))
	}

	emb, err := embedding.NewFromConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer emb.Close()
	if cfg.Index.Type == string(vector.IndexTypeFAISS) && !vector.IsFAISSAvailable() {
		logger.Fatal("index.type faiss requires a build with -tags=faiss")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ix := indexer.NewIndexer(cfg, emb, extract.NewExtractor(), indexer.WithLogger(logger))
	res, err := ix.Run(ctx, fs.Args(), *label)
	if err != nil {
		logger.Fatal("Indexing failed", zap.Error(err))
	}
	fmt.Printf("Indexed %d document(s) into %d chunk(s)\n", res.Documents, res.Chunks)
	fmt.Printf("Generation %s at %s\n", res.Generation, res.Location)

	if *probe != "" {
		results, err := ix.Probe(ctx, *probe)
		if err != nil {
			logger.Fatal("Probe failed", zap.Error(err))
		}
		fmt.Printf("\nProbe: %s\n", *probe)
		for i, r := range results {
			fmt.Printf("  [%d] %.4f %s\n", i+1, r.Score, utils.Preview(r.Chunk.Text, cfg.Retrieval.PreviewLength))
		}
	}
}

// buildQuestion joins positional args so multi-word questions work with or without quotes.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags (and their values) to the front so flag.Parse sees them; the
// flag package stops at the first non-flag argument. Positional words keep their order
// and everything after "--" stays positional.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args)+1)
	positional := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			flags = append(flags, a)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if takesValue(fs, name) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

// takesValue reports whether the named flag consumes the following argument.
func takesValue(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
		return false
	}
	return true
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	stream := fs.Bool("stream", false, "print the answer as it is generated")
	outputFormat := fs.String("output", "text", "output format: text or json (ignored with --stream)")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: lexrag ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *stream {
		err = cli.WriteStream(os.Stdout, components.Service.AnswerStream(ctx, question))
	} else {
		err = cli.WriteAnswer(os.Stdout, components.Service.Answer(ctx, question), format)
	}
	if err != nil {
		if !errors.Is(err, cli.ErrAnswerFailed) {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		}
		components.Close()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (index reloads, watcher events, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolved := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", cfg.Debug),
	)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	metrics.Register()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	holder := components.Holder
	watchOpts := []watcher.WatcherOption{watcher.WithTarget(index.CurrentFile)}
	if cfg.Debug {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(cfg.Index.Location, func() {
		if _, err := holder.Reload(); err != nil {
			logger.Warn("index reload failed; keeping current index", zap.Error(err))
		}
	}, watchOpts...)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}

	srv := server.NewServer(components.Service, holder, cfg, logger)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-serveErr:
		logger.Error("Server failed", zap.Error(err))
		watchSvc.Stop()
		components.Close()
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("Graceful shutdown incomplete", zap.Error(err))
	}
	if err := <-serveErr; err != nil {
		logger.Error("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	st := index.StatusOf(cfg.Index.Location, nil)
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if st.Error != "" {
		os.Exit(1)
	}
}

// Components holds initialized services for the query side.
type Components struct {
	Embedder  embedding.Embedder
	Generator generation.Generator
	Holder    *index.Holder
	Service   *rag.Service
}

// Close releases the embedder and the loaded index.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
		c.Embedder = nil
	}
	if c.Holder != nil {
		if idx := c.Holder.Swap(nil); idx != nil {
			_ = idx.Close()
		}
	}
}

// initializeComponents builds the embedder, loads the persisted index, and wires the
// answer service. A missing or incompatible index is fatal.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	emb, err := embedding.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	holder := index.NewHolder(cfg.Index.Location, emb.Identity(), logger)
	if _, err := holder.Reload(); err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	gen, err := generation.NewFromConfig(cfg, logger)
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	svc := rag.NewService(retrieval.New(holder, emb), gen, rag.Options{
		TopK:          cfg.Retrieval.TopK,
		MaxTokens:     cfg.Generation.MaxTokens,
		Temperature:   cfg.Generation.TemperatureOrDefault(),
		PreviewLength: cfg.Retrieval.PreviewLength,
	}, logger)
	return &Components{
		Embedder:  emb,
		Generator: gen,
		Holder:    holder,
		Service:   svc,
	}, nil
}

func printUsage() {
	fmt.Println(`lexrag - question answering over legal documents

Usage:
  lexrag index [flags] <file-or-dir>...   Build and persist a new index generation
  lexrag ask [flags] <question>           Answer a question from the index
  lexrag server [flags]                   Start the HTTP server
  lexrag status [flags]                   Show the persisted index
  lexrag version                          Show version
  lexrag help                             Show this help

Index Flags:
  --config string    Config file path (default: /usr/local/etc/lexrag/config.yaml)
  --label string     Source label for every chunk (default: file name without extension)
  --probe string     Question to retrieve against the new index
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path
  --stream           Print the answer as it is generated
  --output string    Output format: text or json (default: text)

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging

Status Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)

Credentials are read from the environment (GROQ_API_KEY by default) after loading ./.env.

Examples:
  lexrag index --probe "how can a user terminate their contract?" ./contracts
  lexrag ask "What notice period applies to termination?"
  lexrag ask --stream --config ./config.yaml how are fees invoiced
  lexrag status --output json`)
}
