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

	"github.com/9182192619/web-chat/internal/api"
	"github.com/9182192619/web-chat/internal/auth"
	"github.com/9182192619/web-chat/internal/chat"
	"github.com/9182192619/web-chat/internal/config"
	"github.com/9182192619/web-chat/internal/logging"
	"github.com/9182192619/web-chat/internal/middleware"
	"github.com/9182192619/web-chat/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "chat-server",
	Short:         "Chat server: REST auth plus the real-time channel on /ws",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

func init() {
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chat-server:", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	cfg.LogSummary(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, err := repository.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer users.Close()

	tokens := auth.NewTokenIssuer(cfg.AuthKey, cfg.TokenTTL)
	hub := chat.NewHub(tokens, logger)
	handlers := api.NewHandlers(users, auth.NewPasswordHasher(auth.DefaultBcryptCost), tokens, logger)

	mux := http.NewServeMux()
	handlers.Routes(mux)
	mux.HandleFunc("GET /ws", chat.ServeWS(hub))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, cleaning up")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-hub.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("graceful shutdown complete")
	return nil
}
