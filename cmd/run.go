package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sontungtran/dopt/opt/transport"
)

// runCmd coordinates a search against a remote trainer pool
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Coordinate a hyperparameter search over stdio or TCP",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(configPath)
		applyRunFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runCoordinator(ctx, cfg); err != nil {
			logrus.Fatalf("Coordinator failed: %v", err)
		}
		logrus.Info("Search complete.")
	},
}

// openChannel connects the configured transport. The returned stream must be closed.
func openChannel(ctx context.Context, cfg TransportConfig) (*transport.Stream, error) {
	switch cfg.Mode {
	case "", "stdio":
		return transport.NewStream(os.Stdin, os.Stdout, nil), nil
	case "tcp":
		logrus.Infof("Waiting for the trainer pool on %s", cfg.Listen)
		return transport.Listen(ctx, cfg.Listen)
	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Mode)
	}
}

func runCoordinator(ctx context.Context, cfg *RunConfig) error {
	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	stream, err := openChannel(ctx, cfg.Transport)
	if err != nil {
		return err
	}
	defer stream.Close()

	coord, err := s.coordinator(stream, time.Now())
	if err != nil {
		return err
	}
	logrus.Infof("Starting search over %v with seed %d", coord.Labels(), s.seed)
	if err := coord.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted after %d observations: %w", s.store.Len(), err)
		}
		return err
	}

	if cfg.Transport.Mode == "tcp" {
		writeReport(os.Stdout, s.store, cfg.Objective(), s.trace)
		return nil
	}
	// stdout carries the protocol in stdio mode, so the report goes to the log.
	var report strings.Builder
	writeReport(&report, s.store, cfg.Objective(), s.trace)
	for _, line := range strings.Split(strings.TrimRight(report.String(), "\n"), "\n") {
		logrus.Info(line)
	}
	if pending := coord.Pending().Len(); pending > 0 {
		logrus.Warnf("%d candidates were still pending when the search stopped", pending)
	}
	return nil
}
