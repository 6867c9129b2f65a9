package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ambufleet/dispatch/api/client"
	"github.com/ambufleet/dispatch/config"
	"github.com/ambufleet/dispatch/core/reconcile"
	"github.com/ambufleet/dispatch/infra/logger"
	"github.com/ambufleet/dispatch/infra/notify"
)

var watchDriverID string

var driverCmd = &cobra.Command{
	Use:   "driver",
	Short: "Driver side commands",
}

var driverWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the scheduler and alert on new assignments",
	RunE:  runDriverWatch,
}

func init() {
	driverWatchCmd.Flags().StringVar(&watchDriverID, "driver-id", "", "driver user id (overrides reconcile.driver_id)")
	driverCmd.AddCommand(driverWatchCmd)
	rootCmd.AddCommand(driverCmd)
}

func runDriverWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if watchDriverID != "" {
		cfg.Reconcile.DriverID = watchDriverID
	}
	if cfg.Reconcile.DriverID == "" {
		return fmt.Errorf("a driver id is required, set --driver-id or reconcile.driver_id")
	}

	logg := logger.New("driver-watch")
	src := client.New(client.Config{BaseURL: serverURL(cfg.API.Addr)})

	var notifier reconcile.Notifier
	if cfg.Notify.Enabled {
		paho, err := notify.NewPahoNotifier(cfg.Notify)
		if err != nil {
			return fmt.Errorf("mqtt notifier: %w", err)
		}
		defer paho.Close()
		notifier = paho
	}

	loop, err := reconcile.NewLoop(cfg.Reconcile, src, notifier, nil, logg)
	if err != nil {
		return err
	}
	logg.Infof("watching assignments for driver %s", cfg.Reconcile.DriverID)
	loop.Run(ctx)
	return nil
}
