package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/study-spots/services/social/internal/thread"
)

// PostgresThreadStore persists records in the reviews table.
type PostgresThreadStore struct {
	pool *pgxpool.Pool
}

func NewPostgresThreadStore(pool *pgxpool.Pool) *PostgresThreadStore {
	return &PostgresThreadStore{pool: pool}
}

const recordColumns = `id, location_id, user_id, parent_id, text, created_at`

func (s *PostgresThreadStore) Append(ctx context.Context, r thread.Record) (thread.Record, error) {
	// Parent check and insert run as one statement.
	const q = `INSERT INTO reviews (location_id, user_id, parent_id, text)
	           SELECT $1::bigint, $2::bigint, $3::bigint, $4::text
	           WHERE $3::bigint = 0 OR EXISTS (SELECT 1 FROM reviews WHERE id = $3::bigint AND location_id = $1::bigint)
	           RETURNING ` + recordColumns
	out, err := scanRecord(s.pool.QueryRow(ctx, q, r.LocationID, r.UserID, r.ParentID, r.Text))
	if errors.Is(err, pgx.ErrNoRows) {
		return thread.Record{}, ErrParentNotFound
	}
	return out, err
}

func (s *PostgresThreadStore) ListByLocation(ctx context.Context, locationID int64) ([]thread.Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM reviews
	                     WHERE location_id = $1 ORDER BY created_at, id`, locationID)
}

func (s *PostgresThreadStore) ListByParent(ctx context.Context, locationID, parentID int64) ([]thread.Record, error) {
	if locationID == 0 {
		return s.query(ctx, `SELECT `+recordColumns+` FROM reviews
		                     WHERE parent_id = $1 ORDER BY created_at, id`, parentID)
	}
	return s.query(ctx, `SELECT `+recordColumns+` FROM reviews
	                     WHERE parent_id = $1 AND location_id = $2 ORDER BY created_at, id`, parentID, locationID)
}

func (s *PostgresThreadStore) ReplyCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT parent_id, count(*) FROM reviews WHERE parent_id = ANY($1) GROUP BY parent_id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (s *PostgresThreadStore) query(ctx context.Context, q string, args ...any) ([]thread.Record, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []thread.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (thread.Record, error) {
	var r thread.Record
	err := row.Scan(&r.ID, &r.LocationID, &r.UserID, &r.ParentID, &r.Text, &r.CreatedAt)
	return r, err
}
