package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/9182192619/web-chat/internal/config"
	"github.com/9182192619/web-chat/internal/logging"
	"github.com/9182192619/web-chat/internal/session"
	"github.com/9182192619/web-chat/internal/transport"
	"github.com/9182192619/web-chat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dialTimeout = 10 * time.Second
	httpTimeout = 15 * time.Second
)

var (
	serverURL string
	logFile   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "chat",
	Short:         "Terminal client for the chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runClient,
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "", "server base URL (overrides CHAT_SERVER_URL)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "log file path (overrides CHAT_LOG_FILE)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chat:", err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	// The terminal belongs to the UI, so logs go to a file.
	logger, err := logging.NewFile(cfg.LogFile, verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	sock, err := transport.Dial(dialCtx, cfg.ServerURL, logger)
	dialCancel()
	if err != nil {
		return err
	}
	defer sock.Close()

	api := transport.NewAPI(cfg.ServerURL, &http.Client{Timeout: httpTimeout})
	bridge := tui.NewBridge()
	client := session.NewClient(sock, api, bridge, session.Options{
		TypingIdle: cfg.TypingIdle,
		Logger:     logger,
	})
	defer client.Close()

	program := tea.NewProgram(tui.NewModel(client), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := sock.Run(gctx)
		if err != nil {
			logger.Warn("real-time channel closed", zap.Error(err))
			bridge.Disconnected(err)
		} else if gctx.Err() == nil {
			bridge.Disconnected(nil)
		}
		// The UI stays up after a disconnect so the transcript remains readable.
		return nil
	})

	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	return g.Wait()
}
