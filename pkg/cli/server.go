package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mchmarny/fairaudit/pkg/metrics"
	urfave "github.com/urfave/cli/v3"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080
)

var (
	portFlag = &urfave.IntFlag{
		Name:     "port",
		Usage:    "Port on which the server will listen",
		Value:    serverPortDefault,
		Required: false,
	}

	addressFlag = &urfave.StringFlag{
		Name:  "address",
		Usage: "Interface on which the server will listen",
		Value: "127.0.0.1",
	}

	serverCmd = &urfave.Command{
		Name:            "serve",
		Aliases:         []string{"server"},
		Usage:           "Start HTTP audit API with Prometheus metrics",
		HideHelpCommand: true,
		Action:          cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
			addressFlag,
		},
	}
)

func cmdStartServer(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	db, err := cfg.getDB()
	if err != nil {
		return err
	}

	address := fmt.Sprintf("%s:%d", cmd.String(addressFlag.Name), cmd.Int(portFlag.Name))
	api := &auditAPI{
		db:       db,
		profile:  cfg.Profile,
		recorder: metrics.NewRecorder(),
	}

	s := &http.Server{
		Addr:           address,
		Handler:        makeRouter(api),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", "http://"+address, "db", cfg.dbName())

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func makeRouter(api *auditAPI) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /audit", api.auditHandler)
	mux.HandleFunc("GET /audits", api.listHandler)
	mux.HandleFunc("GET /audits/{id}", api.getHandler)
	mux.Handle("GET /metrics", api.recorder.Handler())

	return mux
}
