package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/service"
)

func beliefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beliefs",
		Short: "Ingest and query beliefs",
	}

	addCmd := &cobra.Command{
		Use:   "add <file.csv>",
		Short: "Ingest beliefs from a CSV file",
		Long: `Ingest beliefs from a CSV file with an event_start,event_value header.
Optional belief_horizon and cumulative_probability columns override the
--horizon flag and the deterministic default of 0.5. Rows that repeat
what the named source already believed are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: runBeliefsAdd,
	}
	addCmd.Flags().String("sensor", "", "Sensor name (required)")
	addCmd.Flags().String("source", "", "Source label; created if missing")
	addCmd.Flags().Int64("source-id", 0, "Existing source id, instead of --source")
	addCmd.Flags().String("source-kind", "user", "Kind for a source created via --source")
	addCmd.Flags().String("horizon", "0s", "Belief horizon for rows without a belief_horizon column")
	addCmd.Flags().Bool("keep-unchanged", false, "Persist rows even when they repeat the current belief")
	_ = addCmd.MarkFlagRequired("sensor")
	cmd.AddCommand(addCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print belief frames for one or more sensors",
		RunE:  runBeliefsShow,
	}
	showCmd.Flags().String("sensors", "", "Comma-separated sensor names (required)")
	showCmd.Flags().String("start", "", "Event window start, RFC 3339")
	showCmd.Flags().String("end", "", "Event window end (exclusive), RFC 3339")
	showCmd.Flags().String("as-of", "", "Only beliefs formed at or before this time, RFC 3339")
	showCmd.Flags().String("resolution", "", "Resample events to this resolution, e.g. 1h")
	showCmd.Flags().Bool("most-recent", false, "Keep only the most recent belief per event")
	showCmd.Flags().Bool("combine", false, "Sum the sensors into one frame")
	_ = showCmd.MarkFlagRequired("sensors")
	cmd.AddCommand(showCmd)

	return cmd
}

func runBeliefsAdd(cmd *cobra.Command, args []string) error {
	sensorName, _ := cmd.Flags().GetString("sensor")
	sourceLabel, _ := cmd.Flags().GetString("source")
	sourceID, _ := cmd.Flags().GetInt64("source-id")
	sourceKind, _ := cmd.Flags().GetString("source-kind")
	horizonStr, _ := cmd.Flags().GetString("horizon")
	keepUnchanged, _ := cmd.Flags().GetBool("keep-unchanged")

	if sourceLabel == "" && sourceID == 0 {
		return fmt.Errorf("either --source or --source-id is required")
	}
	defaultHorizon, err := time.ParseDuration(horizonStr)
	if err != nil {
		return fmt.Errorf("parsing horizon: %w", err)
	}

	ctx := cmd.Context()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	var source *domain.DataSource
	if sourceID != 0 {
		source, err = e.sources.Get(ctx, sourceID)
	} else {
		source, err = e.sources.LookupOrCreate(ctx, sourceLabel, domain.SourceKind(sourceKind))
	}
	if err != nil {
		return err
	}

	beliefs, err := readBeliefCSV(args[0], source.ID, defaultHorizon)
	if err != nil {
		return err
	}

	result, err := e.beliefs.Reconcile(ctx, service.ReconcileRequest{
		Sensor:        sensorName,
		Beliefs:       beliefs,
		KeepUnchanged: keepUnchanged,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Persisted %d of %d beliefs for %q (%d unchanged, skipped)\n",
		result.Persisted, result.Candidates, sensorName, result.Skipped)
	return nil
}

// readBeliefCSV parses one belief per row, resolving columns by header name
// so the column order does not matter.
func readBeliefCSV(path string, sourceID int64, defaultHorizon time.Duration) ([]domain.Belief, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"event_start", "event_value"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV is missing the %s column", required)
		}
	}

	field := func(record []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return "", false
		}
		v := strings.TrimSpace(record[i])
		return v, v != ""
	}

	var beliefs []domain.Belief
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}

		startStr, _ := field(record, "event_start")
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing event_start: %w", line, err)
		}
		valueStr, _ := field(record, "event_value")
		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing event_value: %w", line, err)
		}

		horizon := defaultHorizon
		if v, ok := field(record, "belief_horizon"); ok {
			horizon, err = time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing belief_horizon: %w", line, err)
			}
		}
		probability := 0.5
		if v, ok := field(record, "cumulative_probability"); ok {
			probability, err = strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: parsing cumulative_probability: %w", line, err)
			}
		}

		beliefs = append(beliefs, domain.Belief{
			SourceID:              sourceID,
			EventStart:            start,
			Horizon:               horizon,
			CumulativeProbability: probability,
			EventValue:            value,
		})
	}
	return beliefs, nil
}

func runBeliefsShow(cmd *cobra.Command, args []string) error {
	sensorsStr, _ := cmd.Flags().GetString("sensors")
	mostRecent, _ := cmd.Flags().GetBool("most-recent")
	combine, _ := cmd.Flags().GetBool("combine")

	req := service.FetchRequest{
		MostRecentOnly: mostRecent,
		Combine:        combine,
	}
	for _, name := range strings.Split(sensorsStr, ",") {
		if name = strings.TrimSpace(name); name != "" {
			req.Sensors = append(req.Sensors, name)
		}
	}

	if v, _ := cmd.Flags().GetString("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("parsing start: %w", err)
		}
		req.EventWindow.Start = &start
	}
	if v, _ := cmd.Flags().GetString("end"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("parsing end: %w", err)
		}
		req.EventWindow.End = &end
	}
	if v, _ := cmd.Flags().GetString("as-of"); v != "" {
		asOf, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("parsing as-of: %w", err)
		}
		req.AsOf = &asOf
	}
	if v, _ := cmd.Flags().GetString("resolution"); v != "" {
		resolution, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing resolution: %w", err)
		}
		req.Resolution = resolution
	}

	ctx := cmd.Context()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.beliefs.Fetch(ctx, req)
	if err != nil {
		return err
	}

	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stderr, "%s: %s\n", failure.Sensor, failure.Message)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
	}

	if result.Combined != nil {
		printFrame(result.Combined)
		return nil
	}

	names := make([]string, 0, len(result.Frames))
	for name := range result.Frames {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			fmt.Println()
		}
		printFrame(result.Frames[name])
	}
	if len(names) == 0 {
		return fmt.Errorf("no frames returned")
	}
	return nil
}

func printFrame(frame *domain.BeliefFrame) {
	fmt.Printf("%s (%s, resolution %s): %d rows\n",
		frame.Sensor.Name, frame.Sensor.Unit, frame.Sensor.EventResolution, frame.Len())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT START\tBELIEF TIME\tSOURCE\tPROBABILITY\tVALUE")
	for _, row := range frame.Rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%g\n",
			row.EventStart.Format(time.RFC3339),
			row.BeliefTime(frame.Sensor.EventResolution).Format(time.RFC3339),
			row.SourceID,
			row.CumulativeProbability,
			row.EventValue)
	}
	w.Flush()
}
