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
	ErrSourceLabelRequired = errors.New("source label must not be empty")
	ErrInvalidSourceKind   = errors.New("invalid source kind")
	ErrSourceNotFound      = errors.New("source not found")
)

// Sources manages data sources. Sources are created lazily: asking for a
// (label, kind) pair that does not exist yet registers it.
type Sources struct {
	store  domain.SourceStore
	logger *zap.Logger
}

func NewSources(store domain.SourceStore, logger *zap.Logger) *Sources {
	return &Sources{store: store, logger: logger}
}

func (s *Sources) LookupOrCreate(ctx context.Context, label string, kind domain.SourceKind) (*domain.DataSource, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrSourceLabelRequired
	}
	if !domain.ValidSourceKind(string(kind)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceKind, kind)
	}

	source, err := s.store.LookupOrCreate(ctx, label, kind)
	if err != nil {
		return nil, fmt.Errorf("resolving source: %w", err)
	}
	s.logger.Debug("source resolved",
		zap.Int64("id", source.ID),
		zap.String("label", source.Label),
		zap.String("kind", string(source.Kind)))
	return source, nil
}

func (s *Sources) Get(ctx context.Context, id int64) (*domain.DataSource, error) {
	source, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrSourceNotFound, id)
		}
		return nil, fmt.Errorf("getting source: %w", err)
	}
	return source, nil
}

func (s *Sources) List(ctx context.Context) ([]domain.DataSource, error) {
	sources, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return sources, nil
}
