package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// Durations are persisted as microsecond bigints; Postgres intervals lose
// sub-second uniformity once day or month parts appear.
func usFromDuration(d time.Duration) int64 {
	return d.Microseconds()
}

func durationFromUS(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

type SensorStore struct {
	db *pgxpool.Pool
}

func NewSensorStore(db *pgxpool.Pool) *SensorStore {
	return &SensorStore{db: db}
}

func (s *SensorStore) Create(ctx context.Context, sensor *domain.Sensor) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO sensors (name, unit, event_resolution_us, latitude, longitude)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		sensor.Name, sensor.Unit, usFromDuration(sensor.EventResolution), sensor.Latitude, sensor.Longitude,
	).Scan(&sensor.ID, &sensor.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SensorStore) GetByID(ctx context.Context, id int64) (*domain.Sensor, error) {
	return s.scanOne(s.db.QueryRow(ctx,
		`SELECT id, name, unit, event_resolution_us, latitude, longitude, created_at
		 FROM sensors WHERE id = $1`,
		id,
	))
}

func (s *SensorStore) GetByName(ctx context.Context, name string) (*domain.Sensor, error) {
	return s.scanOne(s.db.QueryRow(ctx,
		`SELECT id, name, unit, event_resolution_us, latitude, longitude, created_at
		 FROM sensors WHERE name = $1`,
		name,
	))
}

func (s *SensorStore) scanOne(row pgx.Row) (*domain.Sensor, error) {
	sensor := &domain.Sensor{}
	var resolutionUS int64
	err := row.Scan(&sensor.ID, &sensor.Name, &sensor.Unit, &resolutionUS, &sensor.Latitude, &sensor.Longitude, &sensor.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sensor.EventResolution = durationFromUS(resolutionUS)
	return sensor, nil
}

func (s *SensorStore) List(ctx context.Context) ([]domain.Sensor, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, unit, event_resolution_us, latitude, longitude, created_at
		 FROM sensors ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sensors []domain.Sensor
	for rows.Next() {
		var sensor domain.Sensor
		var resolutionUS int64
		if err := rows.Scan(&sensor.ID, &sensor.Name, &sensor.Unit, &resolutionUS, &sensor.Latitude, &sensor.Longitude, &sensor.CreatedAt); err != nil {
			return nil, err
		}
		sensor.EventResolution = durationFromUS(resolutionUS)
		sensors = append(sensors, sensor)
	}
	return sensors, rows.Err()
}
