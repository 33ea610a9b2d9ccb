package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/medialink-go/api"
	"github.com/yourusername/medialink-go/api/handlers"
	"github.com/yourusername/medialink-go/internal/app"
	"github.com/yourusername/medialink-go/internal/domain"
	"github.com/yourusername/medialink-go/internal/infrastructure"
	"github.com/yourusername/medialink-go/pkg/logger"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "medialink",
		Short: "MediaLink - native messaging host brokering media transfers",
		Long: `A native messaging host that drives an external media tool on behalf of a
browser extension: it spawns transfers, infers progress from the tool's
telemetry, escalates cancellations, classifies outcomes and streams events
back over framed stdio.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// multiSender fans one event out to the caller transport and any observers
type multiSender []app.Sender

func (m multiSender) Send(ev domain.Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Send(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func runHost() error {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zl.Sync()

	// Categorized lifecycle log, best-effort
	var eventLog *logger.MultiLogger
	if config.Transfer.LogsDir != "" {
		eventLog, err = logger.NewMultiLogger(logger.MultiLoggerConfig{
			Level:   config.Logging.Level,
			LogsDir: config.Transfer.LogsDir,
		})
		if err != nil {
			zl.Warn("Session event log disabled", zap.Error(err))
			eventLog = nil
		} else {
			defer eventLog.Sync()
		}
	}

	// Transfer history, best-effort
	var history domain.HistoryRepository
	if config.Transfer.HistoryPath != "" {
		repo, err := infrastructure.NewSQLiteHistoryRepository(config.Transfer.HistoryPath)
		if err != nil {
			zl.Warn("Transfer history disabled", zap.Error(err))
		} else {
			history = repo
			defer repo.Close()
		}
	}

	notifier := infrastructure.NewNotificationService(&config.Notification, zl)
	supervisor := infrastructure.NewSupervisor(zl)
	transport := infrastructure.NewTransport(os.Stdin, os.Stdout)

	sender := multiSender{transport}

	// Optional local status API with live progress stream
	var hub *handlers.ProgressHub
	var apiServer *http.Server
	if config.API.Enabled {
		hub = handlers.NewProgressHub(zl)
		sender = append(sender, hub)
	}

	orch := app.NewOrchestrator(
		config,
		app.SupervisorStarter{Supervisor: supervisor},
		sender,
		history,
		notifier,
		eventLog,
		zl,
	)

	if config.API.Enabled {
		router := api.SetupRouter(orch, history, hub, zl)
		apiServer = &http.Server{Addr: config.API.Addr, Handler: router}
		go func() {
			zl.Info("Status API listening", zap.String("addr", config.API.Addr))
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Error("Status API failed", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Request reader: the browser closing its end of the pipe is the normal
	// end-of-life signal for a native host.
	go func() {
		for {
			req, err := transport.Receive()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					zl.Warn("Transport closed", zap.Error(err))
				}
				cancel()
				return
			}
			orch.Dispatch(req)
		}
	}()

	// OS signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		zl.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	zl.Info("MediaLink host started",
		zap.String("tool", config.Tool.BinaryPath),
		zap.Bool("api", config.API.Enabled))

	runErr := orch.Run(ctx)

	// Every outstanding process is force-terminated exactly once.
	supervisor.ShutdownAll()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = apiServer.Shutdown(shutdownCtx)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
