// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/addralloc"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/engine"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/errclass"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/mgmtapi"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/orchestrator"
	"github.com/Rise-Building-Technology/bacnet-sim-ci/simerr"
	"github.com/spf13/cobra"
)

var (
	serveAdoptExisting bool
	serveLoopback      bool
	serveStopTimeout   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the devices and the management API",
	Long: `Serve assigns the device addresses, starts one protocol engine per
device and serves the management API until SIGINT or SIGTERM. It exits
with an error when no device could start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		iface, err := newInterface(cfg, serveLoopback)
		if err != nil {
			return err
		}

		factory := &engine.UDPFactory{}
		if logger.Enabled(ctx, slog.LevelDebug) {
			factory.WrapConn = engine.WrapPacketConn
		}
		orch := orchestrator.New(cfg, iface, factory)
		orch.AdoptExisting = serveAdoptExisting
		orch.Logger = logger
		result, err := orch.Start(ctx)
		if result != nil {
			for _, failure := range result.Failures {
				logger.WarnContext(
					ctx,
					"deviceUnavailable",
					slog.Uint64("deviceId", uint64(failure.DeviceID)),
					slog.String("err", failure.Error),
					slog.String("errClass", errclass.New(failure.Err)),
				)
			}
		}
		if err != nil {
			stopOrchestrator(orch)
			return err
		}

		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Global.APIPort))
		if err != nil {
			stopOrchestrator(orch)
			return fmt.Errorf("management API: %w", err)
		}
		api := mgmtapi.New(orch)
		api.Logger = logger
		serveErr := api.Serve(ctx, listener)
		stopOrchestrator(orch)
		return serveErr
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveAdoptExisting, "adopt-existing", false,
		"adopt device addresses already present on the interface")
	serveCmd.Flags().BoolVar(&serveLoopback, "loopback", false,
		"use the loopback addresses instead of managing the interface")
	serveCmd.Flags().DurationVar(&serveStopTimeout, "stop-timeout", 15*time.Second,
		"maximum time to stop the devices")
	rootCmd.AddCommand(serveCmd)
}

// stopOrchestrator stops the devices, logging the shutdown errors.
func stopOrchestrator(orch *orchestrator.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), serveStopTimeout)
	defer cancel()
	if err := orch.Stop(ctx); err != nil {
		logger.Warn("shutdownIncomplete", slog.Any("err", err), slog.String("errClass", errclass.New(err)))
	}
}

// newInterface returns the interface hosting the device addresses.
//
// Hosts other than Linux cannot manage secondary addresses with ip(8)
// and fall back to the loopback interface.
func newInterface(cfg *config.Simulator, loopback bool) (addralloc.Interface, error) {
	if loopback || runtime.GOOS != "linux" {
		logger.Info("loopbackInterface", slog.String("goos", runtime.GOOS),
			slog.String("prefix", addralloc.LoopbackPrefix.String()))
		return addralloc.Loopback{}, nil
	}
	iface, err := addralloc.NewIPRoute(cfg.Global.Interface)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", simerr.ErrConfiguration, err)
	}
	iface.Logger = logger
	return iface, nil
}
