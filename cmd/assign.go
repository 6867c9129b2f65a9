package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambufleet/dispatch/api/client"
	"github.com/ambufleet/dispatch/config"
)

var (
	assignBookingID string
	assignVehicleID string
	assignForce     bool
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a booking to a vehicle",
	RunE:  runAssign,
}

func init() {
	assignCmd.Flags().StringVar(&assignBookingID, "booking", "", "booking id")
	assignCmd.Flags().StringVar(&assignVehicleID, "vehicle", "", "vehicle id")
	assignCmd.Flags().BoolVar(&assignForce, "force", false, "commit even if the window conflicts")
	_ = assignCmd.MarkFlagRequired("booking")
	_ = assignCmd.MarkFlagRequired("vehicle")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cli := client.New(client.Config{BaseURL: serverURL(cfg.API.Addr)})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := cli.ProposeAssignment(ctx, assignVehicleID, assignBookingID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "proposed: driver %s, %s to %s (%s)\n",
		p.DriverID, p.Window.Start.Format(time.RFC3339), p.Window.End.Format(time.RFC3339), p.Duration())

	entry, err := cli.CommitAssignment(ctx, p, assignForce)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "schedule_conflict" {
			return fmt.Errorf("window conflicts with the committed schedule; re-run with --force to override")
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "committed entry %s on vehicle %s\n", entry.ID, entry.VehicleID)
	return nil
}
