package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"termprobe/batch"
	"termprobe/browser"
	"termprobe/config"
	"termprobe/metrics"
	"termprobe/search"
	"termprobe/site"
	"termprobe/terms"
)

type flags struct {
	site      string
	termsPath string
	termsDB   string
	sitesPath string
	replace   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "termprobe",
		Short:        "termprobe checks whether terms are indexed by a site's search.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.sitesPath, "sites", "", "YAML file with additional site definitions")
	root.PersistentFlags().StringVar(&f.termsDB, "terms-db", "", "bbolt database holding the term list")

	runCmd := &cobra.Command{
		Use:   "run [--site name] [--terms file]",
		Short: "Searches every term on the selected site and logs the results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), f)
		},
	}
	runCmd.Flags().StringVar(&f.site, "site", "", "site variant to search")
	runCmd.Flags().StringVar(&f.termsPath, "terms", "", "YAML or JSON term file")

	sitesCmd := &cobra.Command{
		Use:   "sites",
		Short: "Lists the known site variants.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg)
			if err != nil {
				return err
			}
			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	termsCmd := &cobra.Command{
		Use:   "terms",
		Short: "Manages the bbolt term store.",
	}
	importCmd := &cobra.Command{
		Use:   "import <file> --terms-db <db>",
		Short: "Appends the terms of a YAML or JSON file to the term store.",
		Long:  "Appends the terms of a YAML or JSON file to the term store. With --replace the store is emptied first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			if cfg.TermsDB == "" {
				return errors.New("--terms-db is required")
			}
			n, err := importTerms(cmd.Context(), args[0], cfg.TermsDB, f.replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d terms into %s\n", n, cfg.TermsDB)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&f.replace, "replace", false, "clear the stored terms before importing")
	termsCmd.AddCommand(importCmd)

	root.AddCommand(runCmd, sitesCmd, termsCmd)
	return root
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.site != "" {
		cfg.Site = f.site
	}
	if f.termsPath != "" {
		cfg.TermsPath = f.termsPath
	}
	if f.termsDB != "" {
		cfg.TermsDB = f.termsDB
	}
	if f.sitesPath != "" {
		cfg.SitesPath = f.sitesPath
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runProbe(ctx context.Context, f flags) error {
	// =========
	// Config
	// =========
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	// =========
	// Logging
	// =========
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx = batch.WithRunID(ctx, batch.NewRunID())
	runLogger := batch.GetContextLogger(ctx, logger)

	// =========
	// Metrics & profiling
	// =========
	recorder := metrics.NewRecorder()
	if cfg.DebugAddr != "" {
		srv := debugServer(cfg.DebugAddr, recorder)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				runLogger.Warn("debug server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	// =========
	// Site & terms
	// =========
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	def, err := registry.Lookup(cfg.Site)
	if err != nil {
		return err
	}

	src, closeSrc, err := termSource(cfg)
	if err != nil {
		return err
	}
	defer closeSrc()
	termList, err := terms.LoadOrSample(ctx, src, runLogger)
	if err != nil {
		return fmt.Errorf("load terms: %w", err)
	}

	// =========
	// Chromedp
	// =========
	if cfg.ProxyURL != "" && cfg.CheckEgress {
		client, err := browser.EgressClient(cfg.ProxyURL, cfg.WaitTimeout)
		if err != nil {
			return &search.SessionInitError{Err: err}
		}
		browser.EgressIP(ctx, client, browser.DefaultIPCheckServices, runLogger)
	}

	chrome, err := browser.Launch(ctx, runLogger, cfg.BrowserOptions())
	if err != nil {
		return &search.SessionInitError{Err: err}
	}
	defer chrome.Close()

	results, err := probe(ctx, cfg, def, chrome, recorder, logger, termList)
	if err != nil {
		return err
	}

	runLogger.Info("*** done",
		zap.String("results", results.JSON()),
		zap.Any("summary", results.Summary()))
	return nil
}

// probe runs one batch of terms against def on engine and returns the ordered
// results. It owns the session's tab but not the engine. logger must not carry
// the run ID yet; the runner adds it from ctx.
func probe(
	ctx context.Context,
	cfg *config.Config,
	def site.Definition,
	engine browser.Engine,
	recorder *metrics.Recorder,
	logger *zap.Logger,
	termList []string,
) (batch.Results, error) {
	runLogger := batch.GetContextLogger(ctx, logger)
	session := search.New(engine, def, runLogger,
		search.WithUserAgent(cfg.UserAgent),
		search.WithHumanDelay(cfg.HumanDelay),
	)
	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	defer session.Close()

	runner := batch.NewRunner(session, cfg.Pacing(def.Pacing()), logger,
		batch.WithMaxAttempts(cfg.MaxAttempts),
		batch.WithMetrics(recorder),
		batch.WithSite(def.Name()),
	)

	runLogger.Info("starting batch",
		zap.String("site", def.Name()),
		zap.Int("terms", len(termList)),
		zap.Int("max_attempts", cfg.MaxAttempts))

	results, err := runner.Run(ctx, termList)
	if errors.Is(err, context.Canceled) {
		runLogger.Warn("batch interrupted, remaining terms recorded as unknown")
		return results, nil
	}
	return results, err
}

func buildRegistry(cfg *config.Config) (*site.Registry, error) {
	registry := site.DefaultRegistry()
	if cfg.SitesPath == "" {
		return registry, nil
	}
	defs, err := site.LoadSpecs(cfg.SitesPath)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// termSource prefers the bbolt store over a term file.
func termSource(cfg *config.Config) (terms.Source, func(), error) {
	switch {
	case cfg.TermsDB != "":
		src := &terms.BoltSource{DBPath: cfg.TermsDB}
		if err := src.Init(); err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	case cfg.TermsPath != "":
		return terms.FileSource{Path: cfg.TermsPath}, func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

func importTerms(ctx context.Context, path, dbPath string, replace bool) (int, error) {
	records, err := terms.FileSource{Path: path}.Load(ctx)
	if err != nil {
		return 0, err
	}
	store := &terms.BoltSource{DBPath: dbPath}
	if err := store.Init(); err != nil {
		return 0, err
	}
	defer store.Close()

	if replace {
		if err := store.Clear(); err != nil {
			return 0, fmt.Errorf("clear terms: %w", err)
		}
	}
	if err := store.Append(ctx, records); err != nil {
		return 0, fmt.Errorf("import terms: %w", err)
	}
	return len(records), nil
}

func debugServer(addr string, recorder *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return &http.Server{Addr: addr, Handler: mux}
}
