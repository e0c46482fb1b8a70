package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chatd/internal/assistant"
	"chatd/internal/common/fsutil"
	"chatd/internal/config"
	"chatd/internal/gguf"
	"chatd/internal/httpapi"
	"chatd/internal/prompt"
	"chatd/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatd",
		Short:         "Conversational inference server over a local GGUF model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configPath string
		threads    int
	)
	var flagCfg config.Config

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the conversation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(configPath, flagCfg)
			if err != nil {
				return err
			}
			return serve(cfg, threads)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file (.yaml, .json or .toml)")
	cmd.Flags().StringVar(&flagCfg.Addr, "addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&flagCfg.ModelPath, "model", "", "Path to the GGUF model file")
	cmd.Flags().IntVar(&flagCfg.ContextSize, "context-size", 0, "Model context window in tokens")
	cmd.Flags().IntVar(&flagCfg.QueueDepth, "queue-depth", 0, "Inference queue capacity")
	cmd.Flags().StringVar(&flagCfg.DBPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&flagCfg.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	cmd.Flags().IntVar(&threads, "threads", runtime.NumCPU(), "Inference threads")
	return cmd
}

// resolveConfig layers configuration sources: file, then environment, then
// explicit flags, then package defaults for whatever is still unset.
func resolveConfig(configPath string, flagCfg config.Config) (config.Config, error) {
	var cfg config.Config
	var err error
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	cfg = config.FromEnv(cfg)
	if flagCfg.Addr != "" {
		cfg.Addr = flagCfg.Addr
	}
	if flagCfg.ModelPath != "" {
		cfg.ModelPath = flagCfg.ModelPath
	}
	if flagCfg.ContextSize > 0 {
		cfg.ContextSize = flagCfg.ContextSize
	}
	if flagCfg.QueueDepth > 0 {
		cfg.QueueDepth = flagCfg.QueueDepth
	}
	if flagCfg.DBPath != "" {
		cfg.DBPath = flagCfg.DBPath
	}
	if flagCfg.LogLevel != "" {
		cfg.LogLevel = flagCfg.LogLevel
	}
	cfg = config.ApplyDefaults(cfg)
	if cfg.ModelPath, err = fsutil.ExpandHome(cfg.ModelPath); err != nil {
		return cfg, err
	}
	if cfg.DBPath, err = fsutil.ExpandHome(cfg.DBPath); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func serve(cfg config.Config, threads int) error {
	log := newLogger(cfg.LogLevel)

	// Model load is fatal by design: without a model there is nothing to
	// serve, so the process must not come up half-alive.
	meta, err := gguf.ReadMetadata(cfg.ModelPath)
	if err != nil {
		log.Error().Err(err).Str("model", cfg.ModelPath).Msg("failed to read model metadata")
		return err
	}
	engine, err := prompt.NewEngine(meta)
	if err != nil {
		log.Error().Err(err).Msg("failed to build chat template engine")
		return err
	}
	rt, err := assistant.LoadRuntime(cfg.ModelPath, cfg.ContextSize, threads)
	if err != nil {
		log.Error().Err(err).Msg("failed to load model")
		return err
	}
	defer rt.Close()

	if err := fsutil.EnsureParentDir(cfg.DBPath); err != nil {
		log.Error().Err(err).Str("db", cfg.DBPath).Msg("failed to create database directory")
		return err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("db", cfg.DBPath).Msg("failed to open database")
		return err
	}
	defer st.Close()

	queue := assistant.NewQueue(cfg.QueueDepth)
	worker := assistant.NewWorker(queue, engine, rt, log)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run()
	}()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(httpapi.NewServer(st, queue, cfg.ContextSize, log)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr).
			Str("model", cfg.ModelPath).
			Int("context_size", cfg.ContextSize).
			Int("queue_depth", cfg.QueueDepth).
			Msg("chatd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
		queue.Close()
		wg.Wait()
		return err
	}

	// Stop accepting requests first so no handler submits after the queue
	// closes, then drain what was already admitted.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown incomplete")
		cancelBase()
	}
	queue.Close()
	wg.Wait()
	return nil
}
