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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/sessionmesh"
	"github.com/hupe1980/sessionmesh/channel/console"
	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

var (
	runUser        string
	runChannel     string
	runMetricsAddr string
)

func init() {
	runCmd.Flags().StringVar(&runUser, "user", "me", "user id for input lines without a \"user>\" prefix")
	runCmd.Flags().StringVar(&runChannel, "channel", "console", "channel reference of the terminal")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Chat with the bot on stdin/stdout",
	Long: `run reads one message per line from stdin. Prefix a line with "name>" to speak
as another user, or "bot:name>" to send a bot-authored message. Replies are
printed as "[channel] text".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runMetricsAddr != "" {
			cfg.Metrics.Addr = runMetricsAddr
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config:\n%w", err)
		}

		logCfg := logging.DefaultConfig()
		logCfg.Output = os.Stderr
		logCfg.Format = cfg.Log.Format
		if logCfg.Level, err = logging.ParseLevel(cfg.Log.Level); err != nil {
			return err
		}
		logger := logging.New(logCfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		mesh, err := sessionmesh.FromConfig(cfg, console.NewChannel(cmd.OutOrStdout()), logger, reg)
		if err != nil {
			return err
		}

		if cfg.Metrics.Addr != "" {
			srv := &http.Server{
				Addr:              cfg.Metrics.Addr,
				Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", "error", err)
				}
			}()
			defer srv.Close()
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
		}

		reader := console.Reader{DefaultUser: runUser, ChannelRef: runChannel}
		scanned := make(chan error, 1)
		go func() {
			scanned <- reader.Scan(ctx, cmd.InOrStdin(), func(ev core.Event) {
				outcome := mesh.Handle(ctx, ev)
				logger.Debug("event handled", "user_id", ev.UserID, "outcome", outcome.String())
			})
		}()

		var scanErr error
		select {
		case scanErr = <-scanned:
			// Input ended; let open sessions finish unless interrupted.
			drained := make(chan struct{})
			go func() {
				mesh.Wait()
				close(drained)
			}()
			select {
			case <-drained:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mesh.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
			return scanErr
		}
		return nil
	},
}
