// Package main provides the Hindsight CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hindsight-io/hindsight/internal/buildconfig"
	"github.com/hindsight-io/hindsight/internal/config"
	"github.com/hindsight-io/hindsight/internal/service"
	"github.com/hindsight-io/hindsight/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hindsight",
		Short: "Hindsight - sensor belief time-series engine",
		Long: `Hindsight records what sources believed about sensor events and when,
and serves those beliefs back with most-recent selection, resampling
and aggregation across sensors.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hindsight %s (%s, built %s)\n",
				buildconfig.Version(), buildconfig.Commit(), buildconfig.Date())
		},
	})

	rootCmd.AddCommand(sensorsCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(beliefsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// engine wires stores and services over one database connection.
type engine struct {
	pool    *pgxpool.Pool
	beliefs *service.Beliefs
	sensors *service.Sensors
	sources *service.Sources
}

func connect(ctx context.Context) (*engine, error) {
	_ = config.Load()

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger := zap.NewNop()
	sensorStore := store.NewSensorStore(pool)
	sourceStore := store.NewSourceStore(pool)
	beliefStore := store.NewBeliefStore(pool)

	return &engine{
		pool:    pool,
		beliefs: service.NewBeliefs(sensorStore, sourceStore, beliefStore, nil, nil, logger, config.DemoYear()),
		sensors: service.NewSensors(sensorStore, logger),
		sources: service.NewSources(sourceStore, logger),
	}, nil
}

func (e *engine) close() {
	e.pool.Close()
}
