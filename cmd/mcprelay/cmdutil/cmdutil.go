// Package cmdutil holds helpers shared by the mcprelay service commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/pkg/logger"
)

// NewLogger builds the service logger from the root command's persistent
// logging flags. Logs go to w; with --log-file they are also appended to that
// file as JSON. The returned close function releases the file.
func NewLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, func() error, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	jsonLog, _ := cmd.Flags().GetBool("log-json")
	pretty, _ := cmd.Flags().GetBool("log-pretty")
	logFile, _ := cmd.Flags().GetString("log-file")

	primary := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(jsonLog),
		logger.WithPretty(pretty && !jsonLog),
		logger.WithWriter(w),
	)

	if logFile == "" {
		return primary, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	fileLogger := logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(primary, fileLogger), f.Close, nil
}

// WaitForShutdown blocks until one of the servers reports an error, ctx is
// done or the process receives SIGINT or SIGTERM.
func WaitForShutdown(ctx context.Context, log *slog.Logger, errChan <-chan error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}
