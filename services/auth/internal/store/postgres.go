package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresUserStore struct {
	pool *pgxpool.Pool
}

func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	const q = `
INSERT INTO users (username, password_hash)
VALUES ($1, $2)
RETURNING id, username, password_hash, created_at;
`
	var u User
	err := s.pool.QueryRow(ctx, q, strings.TrimSpace(username), passwordHash).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrConflict
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresUserStore) FindByUsername(ctx context.Context, username string) (User, error) {
	const q = `
SELECT id, username, password_hash, created_at
FROM users
WHERE lower(username) = lower($1)
LIMIT 1;
`
	return s.scanOne(ctx, q, strings.TrimSpace(username))
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id int64) (User, error) {
	const q = `SELECT id, username, password_hash, created_at FROM users WHERE id = $1;`
	return s.scanOne(ctx, q, id)
}

func (s *PostgresUserStore) scanOne(ctx context.Context, q string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
