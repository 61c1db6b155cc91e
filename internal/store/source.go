package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hindsight-io/hindsight/internal/domain"
)

type SourceStore struct {
	db *pgxpool.Pool
}

func NewSourceStore(db *pgxpool.Pool) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) LookupOrCreate(ctx context.Context, label string, kind domain.SourceKind) (*domain.DataSource, error) {
	src, err := s.getByLabel(ctx, label)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	src = &domain.DataSource{Kind: kind, Label: label}
	err = s.db.QueryRow(ctx,
		`INSERT INTO data_sources (kind, label) VALUES ($1, $2)
		 RETURNING id, created_at`,
		kind, label,
	).Scan(&src.ID, &src.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost a create race; the row exists now.
			return s.getByLabel(ctx, label)
		}
		return nil, err
	}
	return src, nil
}

func (s *SourceStore) getByLabel(ctx context.Context, label string) (*domain.DataSource, error) {
	return scanSource(s.db.QueryRow(ctx,
		`SELECT id, kind, label, created_at FROM data_sources WHERE label = $1`,
		label,
	))
}

func (s *SourceStore) GetByID(ctx context.Context, id int64) (*domain.DataSource, error) {
	return scanSource(s.db.QueryRow(ctx,
		`SELECT id, kind, label, created_at FROM data_sources WHERE id = $1`,
		id,
	))
}

func scanSource(row pgx.Row) (*domain.DataSource, error) {
	src := &domain.DataSource{}
	err := row.Scan(&src.ID, &src.Kind, &src.Label, &src.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

func (s *SourceStore) List(ctx context.Context) ([]domain.DataSource, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, kind, label, created_at FROM data_sources ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.DataSource
	for rows.Next() {
		var src domain.DataSource
		if err := rows.Scan(&src.ID, &src.Kind, &src.Label, &src.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
