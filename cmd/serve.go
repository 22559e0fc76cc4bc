package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Partho99/devops-learner/internal/catalog"
	"github.com/Partho99/devops-learner/internal/coderun"
	"github.com/Partho99/devops-learner/internal/config"
	"github.com/Partho99/devops-learner/internal/crypto"
	"github.com/Partho99/devops-learner/internal/database"
	"github.com/Partho99/devops-learner/internal/handlers"
	"github.com/Partho99/devops-learner/internal/progress"
	"github.com/Partho99/devops-learner/internal/termsession"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				config.Cfg.ListenAddr = listen
			}
			return runServe()
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides DEVLEARNER_LISTEN_ADDR)")
	return cmd
}

func runServe() error {
	cfg := config.Cfg

	if err := database.Init(cfg.Database()); err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer database.Close()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	box, err := crypto.New(cfg.NotesKey)
	if err != nil {
		return fmt.Errorf("notes key: %w", err)
	}
	if box != nil {
		log.Info().Str("key", crypto.Mask(cfg.NotesKey)).Msg("notes encryption enabled")
	}
	store := progress.New(database.DB, cat, box, cfg.Debounce())
	if _, err := store.Reencrypt(); err != nil {
		log.Error().Err(err).Msg("re-encrypt notes")
	}

	termMgr := termsession.NewManager(sessionConfig(cfg))
	termMgr.IdleTimeout = cfg.IdleTimeout()
	log.Info().
		Str("endpoint", cfg.TerminalEndpoint).
		Int("history", cfg.TerminalHistoryLimit).
		Str("recording", cfg.TerminalRecordingDir).
		Dur("idle_timeout", termMgr.IdleTimeout).
		Msg("terminal session manager initialized")

	handlers.SessionMgr = termMgr
	handlers.Catalog = cat
	handlers.Progress = store
	handlers.Runner = coderun.NewClient(cfg.RunURL, cfg.RunTimeoutDuration())

	jobs := cron.New()
	if err := registerJobs(jobs, termMgr, store); err != nil {
		return err
	}
	jobs.Start()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handlers.Router(cfg.RunRateLimit),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-sigCtx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down")

	<-jobs.Stop().Done()
	termMgr.Stop()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("flush progress")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// registerJobs schedules idle session cleanup and progress flushing.
func registerJobs(c *cron.Cron, mgr *termsession.Manager, store *progress.Store) error {
	if _, err := c.AddFunc("@every 1m", func() {
		if n := mgr.CleanupIdle(); n > 0 {
			log.Info().Int("closed", n).Msg("idle terminal sessions cleaned up")
		}
	}); err != nil {
		return fmt.Errorf("schedule session cleanup: %w", err)
	}
	if _, err := c.AddFunc("@every 30s", func() {
		if err := store.Flush(); err != nil {
			log.Error().Err(err).Msg("flush progress")
		}
	}); err != nil {
		return fmt.Errorf("schedule progress flush: %w", err)
	}
	return nil
}
