package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/banshee-data/antispoofing.motion/internal/api"
	"github.com/banshee-data/antispoofing.motion/internal/config"
	"github.com/banshee-data/antispoofing.motion/internal/monitoring"
	"github.com/banshee-data/antispoofing.motion/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve time analyses and debug tools over HTTP",
		Long: `Serves, from a score store:
  /time-analysis        interactive error rate charts
  /api/time-analysis    the same analysis as JSON
  /api/runs             recorded runs
  /debug/               SQL console and database backup
Analysis endpoints accept protocol, support, criterion, running_average,
window_size, overlap and threshold query parameters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}
	f := cmd.Flags()
	f.String("db", "", "SQLite score store to serve (required)")
	f.String("listen", "localhost:8080", "address to listen on")
	addSelectionFlags(cmd)
	f.Int("window-size", 0, "default window size of the stored scores")
	f.Int("overlap", 0, "default window overlap of the stored scores")
	return cmd
}

// newHandler builds the full route table around db.
func newHandler(db *store.DB, defaults *config.AnalysisConfig) (http.Handler, error) {
	mux := api.NewServer(db, defaults).ServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return api.LoggingMiddleware(mux), nil
}

func (a *app) runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()
	dbPath := a.v.GetString("db")
	if dbPath == "" {
		return errors.New("no score store given (use --db)")
	}
	cfg, err := a.analysisConfig(cmd, nil)
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	h, err := newHandler(db, cfg)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", a.v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	server := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s/time-analysis\n", dbPath, ln.Addr())

	errc := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	return <-errc
}
