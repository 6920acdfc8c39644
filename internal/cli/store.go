package cli

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Relay/internal/repo"
)

// Store — соединение CLI с базой данных.
type Store struct {
	pool *pgxpool.Pool

	Jobs   *repo.JobRepo
	Events *repo.EventRepo
}

// NewStore открывает пул и создаёт репозитории.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:   pool,
		Jobs:   repo.NewJobRepo(pool),
		Events: repo.NewEventRepo(pool),
	}, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() {
	s.pool.Close()
}
