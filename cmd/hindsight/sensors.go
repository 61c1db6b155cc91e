package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hindsight-io/hindsight/internal/domain"
)

func sensorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sensors",
		Short: "Manage the sensor registry",
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new sensor",
		Args:  cobra.ExactArgs(1),
		RunE:  runSensorsAdd,
	}
	addCmd.Flags().String("unit", "", "Unit of the event values, e.g. MW (required)")
	addCmd.Flags().String("resolution", "0s", "Duration each event spans, e.g. 15m; 0s for instantaneous")
	addCmd.Flags().Float64("latitude", 0, "Sensor latitude")
	addCmd.Flags().Float64("longitude", 0, "Sensor longitude")
	_ = addCmd.MarkFlagRequired("unit")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered sensors",
		RunE:  runSensorsList,
	})

	return cmd
}

func runSensorsAdd(cmd *cobra.Command, args []string) error {
	unit, _ := cmd.Flags().GetString("unit")
	resolutionStr, _ := cmd.Flags().GetString("resolution")

	resolution, err := time.ParseDuration(resolutionStr)
	if err != nil {
		return fmt.Errorf("parsing resolution: %w", err)
	}

	sensor := &domain.Sensor{
		Name:            args[0],
		Unit:            unit,
		EventResolution: resolution,
	}
	if cmd.Flags().Changed("latitude") {
		lat, _ := cmd.Flags().GetFloat64("latitude")
		sensor.Latitude = &lat
	}
	if cmd.Flags().Changed("longitude") {
		lon, _ := cmd.Flags().GetFloat64("longitude")
		sensor.Longitude = &lon
	}

	ctx := cmd.Context()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.sensors.Create(ctx, sensor); err != nil {
		return err
	}
	fmt.Printf("Created sensor %q (id %d, %s, resolution %s)\n",
		sensor.Name, sensor.ID, sensor.Unit, sensor.EventResolution)
	return nil
}

func runSensorsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	sensors, err := e.sensors.List(ctx)
	if err != nil {
		return err
	}
	if len(sensors) == 0 {
		fmt.Println("No sensors registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUNIT\tRESOLUTION")
	for _, s := range sensors {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Unit, s.EventResolution)
	}
	return w.Flush()
}
