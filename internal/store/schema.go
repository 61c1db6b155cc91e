package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS sensors (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    unit TEXT NOT NULL,
    event_resolution_us BIGINT NOT NULL,
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS data_sources (
    id BIGSERIAL PRIMARY KEY,
    kind TEXT NOT NULL,
    label TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS beliefs (
    sensor_id BIGINT NOT NULL REFERENCES sensors(id),
    source_id BIGINT NOT NULL REFERENCES data_sources(id),
    event_start TIMESTAMPTZ NOT NULL,
    belief_horizon_us BIGINT NOT NULL,
    cumulative_probability DOUBLE PRECISION NOT NULL,
    event_value DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (sensor_id, source_id, event_start, belief_horizon_us, cumulative_probability)
);

CREATE INDEX IF NOT EXISTS beliefs_sensor_event_idx ON beliefs (sensor_id, event_start);
`

// EnsureSchema creates the tables when they do not exist yet. Meant for
// seeding and tests; production deployments manage DDL out of band.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
