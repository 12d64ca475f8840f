package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/config"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/logger"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/gateway"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/ingest"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/maintenance"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the memory engine as a long-lived service",
	Long: `Run the engine with its long-lived collaborators: the JSON-RPC
gateway (when enabled), the document watcher (when an ingest directory is
configured) and the maintenance scheduler. Stops on SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer lg.Close()
	log := lg.GetZerolog()

	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() {
		observability.GetAuditLogger().Close()
	}()
	observability.RecordConfigAudit(cmd.Context(), "load", "serve", map[string]interface{}{
		"db_path":         cfg.DBPath,
		"gateway_enabled": cfg.Gateway.Enabled,
		"ingest_dir":      cfg.Ingest.Dir,
	})

	provider, err := memory.NewProvider(cfg.Embedding.Provider, memory.ProviderOptions{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return err
	}

	engine, err := memory.NewEngine(memory.Config{
		DBPath:         cfg.DBPath,
		Logger:         log,
		Provider:       provider,
		VectorWeight:   cfg.Search.VectorWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		CacheCapacity:  cfg.Embedding.CacheCapacity,
		HotCacheSize:   cfg.Embedding.HotCacheSize,
		BatchSize:      cfg.Embedding.BatchSize,
		MaxListResults: cfg.Search.MaxList,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	scheduler, err := maintenance.New(engine, maintenance.Config{
		ReindexSchedule: cfg.Maintenance.ReindexSchedule,
		StatsSchedule:   cfg.Maintenance.StatsSchedule,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Ingest.Dir != "" {
		stopWatch, err := startWatcher(cmd.Context(), engine, cfg, log)
		if err != nil {
			return err
		}
		defer stopWatch()
	}

	var server *gateway.Server
	if cfg.Gateway.Enabled {
		server, err = gateway.NewServer(engine, gateway.Config{
			Host:         cfg.Gateway.Host,
			Port:         cfg.Gateway.Port,
			SharedSecret: cfg.Gateway.SharedSecret,
			Logger:       log,
		})
		if err != nil {
			return err
		}
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			if err := server.Stop(); err != nil {
				log.Error().Err(err).Msg("Gateway shutdown failed")
			}
		}()
	}

	log.Info().Msg("Memory engine service running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-cmd.Context().Done():
	}

	return nil
}

// startWatcher runs an initial sync, then re-syncs whenever the watcher
// reports the document root dirty.
func startWatcher(ctx context.Context, engine *memory.Engine, cfg *config.Config, log zerolog.Logger) (func(), error) {
	pipeline, err := ingest.New(engine, ingest.Config{
		Root:          cfg.Ingest.Dir,
		MaxTokens:     cfg.Ingest.MaxTokens,
		OverlapTokens: cfg.Ingest.OverlapTokens,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	syncCh := make(chan struct{}, 1)
	requestSync := func() {
		pipeline.MarkDirty()
		select {
		case syncCh <- struct{}{}:
		default:
		}
	}

	watcher, err := ingest.NewWatcher(log, requestSync)
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(cfg.Ingest.Dir); err != nil {
		watcher.Stop()
		return nil, err
	}

	// The sync loop runs on its own cancellable context so the stop func
	// can always terminate it, even when the parent context never cancels.
	wctx, wcancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if pipeline.Dirty() {
				if _, err := pipeline.Sync(wctx); err != nil {
					log.Error().Err(err).Msg("Document sync failed")
				}
			}
			select {
			case <-syncCh:
			case <-wctx.Done():
				return
			}
		}
	}()

	return func() {
		if err := watcher.Stop(); err != nil {
			log.Error().Err(err).Msg("Watcher shutdown failed")
		}
		wcancel()
		<-done
	}, nil
}
