package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Micos01/dir-analysis/internal/api"
	"github.com/Micos01/dir-analysis/internal/events"
	"github.com/Micos01/dir-analysis/internal/listfile"
	"github.com/Micos01/dir-analysis/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP API used by the browser front end. The latest index in the
data directory is loaded at startup when one exists; POST /api/reports
parses a new report and streams progress on /api/events.

The server binds to loopback by default. Browsers on other origins are
refused unless listed with --allow-origin, and POST /api/lists only writes
inside --list-dir (the endpoint is off when it is unset).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "127.0.0.1:8080", "Address to listen on")
	serveCmd.Flags().StringSlice("allow-origin", nil, "Cross-origin front end allowed to call the API (repeatable)")
	serveCmd.Flags().String("list-dir", "", "Directory POST /api/lists may write into (unset disables it)")
	bindFlag("listen_addr", serveCmd.Flags().Lookup("listen"))
	bindFlag("server.allowed_origins", serveCmd.Flags().Lookup("allow-origin"))
	bindFlag("server.list_dir", serveCmd.Flags().Lookup("list-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broadcaster := events.NewBroadcaster()
	mgr := newManager()
	mgr.SetProgressFunc(broadcaster.Progress)

	sess := session.New(mgr, cfg.SeparatorByte(), log)
	defer sess.Close()
	if dbPath != "" {
		if _, err := sess.Open(ctx, dbPath); err != nil {
			return fmt.Errorf("failed to open index: %w", err)
		}
	} else if _, err := sess.OpenLatest(ctx); err != nil {
		log.Info().Str("data_dir", cfg.DataDir).Msg("No existing index; waiting for a report")
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: api.NewRouter(&api.Deps{
			Index:       sess,
			Broadcaster: broadcaster,
			SaveList:    listfile.Save,
			Logger:      log,

			ListDir:        cfg.Server.ListDir,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Strs("allowed_origins", cfg.Server.AllowedOrigins).
			Str("list_dir", cfg.Server.ListDir).
			Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
