package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/store"
)

var (
	ErrSensorNameRequired = errors.New("sensor name must not be empty")
	ErrSensorUnitRequired = errors.New("sensor unit must not be empty")
	ErrNegativeResolution = errors.New("event resolution must not be negative")
	ErrSensorExists       = errors.New("sensor already exists")
	ErrSensorNotFound     = errors.New("sensor not found")
)

// Sensors manages the sensor registry.
type Sensors struct {
	store  domain.SensorStore
	logger *zap.Logger
}

func NewSensors(store domain.SensorStore, logger *zap.Logger) *Sensors {
	return &Sensors{store: store, logger: logger}
}

func (s *Sensors) Create(ctx context.Context, sensor *domain.Sensor) error {
	sensor.Name = strings.TrimSpace(sensor.Name)
	sensor.Unit = strings.TrimSpace(sensor.Unit)
	if sensor.Name == "" {
		return ErrSensorNameRequired
	}
	if sensor.Unit == "" {
		return ErrSensorUnitRequired
	}
	if sensor.EventResolution < 0 {
		return ErrNegativeResolution
	}

	if err := s.store.Create(ctx, sensor); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: %s", ErrSensorExists, sensor.Name)
		}
		return fmt.Errorf("creating sensor: %w", err)
	}
	s.logger.Info("sensor created",
		zap.Int64("id", sensor.ID),
		zap.String("name", sensor.Name),
		zap.Duration("resolution", sensor.EventResolution))
	return nil
}

func (s *Sensors) Get(ctx context.Context, name string) (*domain.Sensor, error) {
	sensor, err := s.store.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSensorNotFound, name)
		}
		return nil, fmt.Errorf("getting sensor: %w", err)
	}
	return sensor, nil
}

func (s *Sensors) List(ctx context.Context) ([]domain.Sensor, error) {
	sensors, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sensors: %w", err)
	}
	return sensors, nil
}
