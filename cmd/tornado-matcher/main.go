// Command tornado-matcher is a reference daemon wiring the matcher packages
// together: it loads its configuration, compiles and hot-reloads a
// MatcherConfig tree, watches a spool directory for batches of events,
// evaluates each batch with a bounded worker pool, and logs the outcome.
// This reference daemon intentionally ships no output-delivery transport of
// its own; ProcessedEvent results are logged here and left for a real
// deployment to wire to its own delivery path.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielsvitols/tornado/internal/appconfig"
	"github.com/danielsvitols/tornado/internal/config"
	"github.com/danielsvitols/tornado/internal/configstore"
	"github.com/danielsvitols/tornado/internal/ingest"
	"github.com/danielsvitols/tornado/internal/matcher"
	"github.com/danielsvitols/tornado/internal/obslog"
	"github.com/danielsvitols/tornado/internal/reload"
	"github.com/danielsvitols/tornado/internal/workerpool"
)

func main() {
	var (
		configPath = flag.String("config", "/etc/tornado-matcher/config.yaml", "path to the daemon configuration file")
		verbose    = flag.Bool("verbose", false, "enable verbose status output")
	)
	flag.Parse()

	if *verbose {
		obslog.SetVerbosity(obslog.VerboseLevel)
		obslog.SetTimestamps(true)
	}

	if err := run(*configPath); err != nil {
		obslog.Error("%v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := appconfig.LoadForReadOnly(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	obslog.Info("loaded configuration from %s (agent %s)", configPath, cfg.Agent.ID)

	store, err := configstore.Open(cfg.Store.DBPath, cfg.Store.MaxGenerations)
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	defer store.Close()

	mgr, err := reload.NewManager(cfg.Matcher.Path)
	if err != nil {
		return fmt.Errorf("compiling matcher config: %w", err)
	}
	mgr.OnSwap(onSwap(store, cfg.Matcher.Path))
	obslog.Success("compiled matcher config from %s", cfg.Matcher.Path)

	watcher, err := ingest.NewWatcherWithOptions(cfg.Ingest.SpoolDir, cfg.Ingest.StabilityWait, ingest.WatcherOptions{
		ArchiveDir: cfg.Ingest.SpoolDir + "/processed",
	})
	if err != nil {
		return fmt.Errorf("starting spool watcher: %w", err)
	}
	defer watcher.Close()

	decoder := ingest.NewDecoder()
	pool := workerpool.New(cfg.Workers.PoolSize)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := mgr.Watch(ctx, func(err error) {
			obslog.Warn("reload failed, keeping previous generation: %v", err)
		}); err != nil && ctx.Err() == nil {
			obslog.Error("config watch stopped: %v", err)
		}
	}()

	go func() {
		if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
			obslog.Error("spool watch stopped: %v", err)
		}
	}()

	obslog.Info("tornado-matcher ready, watching %s", cfg.Ingest.SpoolDir)

	for {
		select {
		case <-ctx.Done():
			obslog.Info("shutting down")
			return nil

		case path, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := processBatch(ctx, decoder, pool, mgr, watcher, path); err != nil {
				obslog.Error("processing %s: %v", path, err)
			}
		}
	}
}

// onSwap archives every generation that a later reload compiles
// successfully into store, so a bad-but-compiling reload can be rolled back
// to a known-good one later. The generation reload.NewManager compiles at
// startup is not archived.
func onSwap(store *configstore.Store, path string) func(*matcher.Matcher, config.Node) {
	return func(_ *matcher.Matcher, node config.Node) {
		if _, err := store.Save(path, node); err != nil {
			obslog.Warn("archiving compiled config generation: %v", err)
		}
	}
}

func processBatch(
	ctx context.Context,
	decoder *ingest.Decoder,
	pool *workerpool.Pool,
	mgr *reload.Manager,
	watcher *ingest.Watcher,
	path string,
) error {
	events, err := decoder.DecodeEventsContext(ctx, path)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	results, err := pool.Process(ctx, mgr, events)
	if err != nil {
		return fmt.Errorf("evaluating: %w", err)
	}

	for _, result := range results {
		obslog.ProcessedEvent(result.Event.TraceID, result.Result)
	}

	return watcher.ArchiveFile(path)
}
