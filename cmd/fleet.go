package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambufleet/dispatch/api/client"
	"github.com/ambufleet/dispatch/config"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List vehicles and their readiness",
	RunE:  runFleetLs,
}

func init() {
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cli := client.New(client.Config{BaseURL: serverURL(cfg.API.Addr)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	vehicles, err := cli.Vehicles(ctx)
	if err != nil {
		return err
	}
	for _, v := range vehicles {
		state := "ready"
		if !v.IsReady() {
			state = "unavailable"
			if v.CurrentMissionID != "" {
				state = "on mission " + v.CurrentMissionID
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", v.ID, v.Name, state)
	}
	return nil
}
