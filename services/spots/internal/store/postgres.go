package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/study-spots/services/spots/internal/ranking"
)

// PostgresStore implements Store on the schema in migrations/001_venues.up.sql
// and the migrations that follow it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const venueColumns = `id, external_id, name, latitude, longitude, address, image_url, url, rating`

func scanVenue(row pgx.Row) (ranking.Venue, error) {
	var v ranking.Venue
	err := row.Scan(&v.ID, &v.ExternalID, &v.Name, &v.Coordinates.Latitude, &v.Coordinates.Longitude,
		&v.Address, &v.ImageURL, &v.URL, &v.Rating)
	return v, err
}

func (s *PostgresStore) UpsertVenues(ctx context.Context, venues []ranking.Venue) ([]ranking.Venue, error) {
	if len(venues) == 0 {
		return []ranking.Venue{}, nil
	}
	const q = `INSERT INTO venues (external_id, name, latitude, longitude, address, image_url, url, rating)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	           ON CONFLICT (external_id) DO UPDATE SET
	             name = EXCLUDED.name, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
	             address = EXCLUDED.address, image_url = EXCLUDED.image_url, url = EXCLUDED.url,
	             rating = EXCLUDED.rating, updated_at = now()
	           RETURNING id`

	batch := &pgx.Batch{}
	for _, v := range venues {
		if v.ExternalID == "" {
			return nil, fmt.Errorf("venue %q: external id is required", v.Name)
		}
		batch.Queue(q, v.ExternalID, v.Name, v.Coordinates.Latitude, v.Coordinates.Longitude,
			v.Address, v.ImageURL, v.URL, v.Rating)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]ranking.Venue, len(venues))
	for i, v := range venues {
		if err := br.QueryRow().Scan(&v.ID); err != nil {
			return nil, fmt.Errorf("upsert venue %s: %w", v.ExternalID, err)
		}
		v.Signals = ranking.Signals{}
		out[i] = v
	}
	return out, nil
}

func (s *PostgresStore) Signals(ctx context.Context, ids []int64) (map[int64]ranking.Signals, error) {
	out := make(map[int64]ranking.Signals, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT location_id, avg(coffee)::float8, avg(atmosphere)::float8, avg(comfort)::float8, avg(food)::float8
	           FROM ratings WHERE location_id = ANY($1) GROUP BY location_id`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var sig ranking.Signals
		if err := rows.Scan(&id, &sig.Coffee, &sig.Atmosphere, &sig.Comfort, &sig.Food); err != nil {
			return nil, err
		}
		out[id] = sig
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetVenue(ctx context.Context, id int64) (ranking.Venue, error) {
	v, err := scanVenue(s.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ranking.Venue{}, ErrNotFound
	}
	if err != nil {
		return ranking.Venue{}, err
	}
	sum, err := s.Summary(ctx, id)
	if err != nil {
		return ranking.Venue{}, err
	}
	if sum.Count > 0 {
		v.Signals = sum.Signals()
	}
	return v, nil
}

func (s *PostgresStore) AddRating(ctx context.Context, r Rating) (Rating, error) {
	const q = `INSERT INTO ratings (location_id, user_id, coffee, atmosphere, comfort, food)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           ON CONFLICT (location_id, user_id) DO UPDATE SET
	             coffee = EXCLUDED.coffee, atmosphere = EXCLUDED.atmosphere,
	             comfort = EXCLUDED.comfort, food = EXCLUDED.food, created_at = now()
	           RETURNING created_at`
	err := s.pool.QueryRow(ctx, q, r.LocationID, r.UserID, r.Coffee, r.Atmosphere, r.Comfort, r.Food).Scan(&r.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Rating{}, ErrNotFound
		}
		return Rating{}, err
	}
	return r, nil
}

func (s *PostgresStore) Summary(ctx context.Context, locationID int64) (RatingSummary, error) {
	const q = `SELECT coalesce(avg(coffee), 0)::float8, coalesce(avg(atmosphere), 0)::float8,
	                  coalesce(avg(comfort), 0)::float8, coalesce(avg(food), 0)::float8, count(*)
	           FROM ratings WHERE location_id = $1`
	sum := RatingSummary{LocationID: locationID}
	err := s.pool.QueryRow(ctx, q, locationID).Scan(&sum.Coffee, &sum.Atmosphere, &sum.Comfort, &sum.Food, &sum.Count)
	return sum, err
}

func (s *PostgresStore) ListRatings(ctx context.Context, locationID int64) ([]Rating, error) {
	const q = `SELECT location_id, user_id, coffee, atmosphere, comfort, food, created_at
	           FROM ratings WHERE location_id = $1 ORDER BY created_at, user_id`
	rows, err := s.pool.Query(ctx, q, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Rating{}
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.LocationID, &r.UserID, &r.Coffee, &r.Atmosphere, &r.Comfort, &r.Food, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddFavorite(ctx context.Context, userID, locationID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO favorites (user_id, location_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, locationID)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) ListFavorites(ctx context.Context, userID int64) ([]ranking.Venue, error) {
	const q = `SELECT v.id, v.external_id, v.name, v.latitude, v.longitude, v.address, v.image_url, v.url, v.rating
	           FROM favorites f JOIN venues v ON v.id = f.location_id
	           WHERE f.user_id = $1 ORDER BY f.created_at, f.location_id`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ranking.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddPhotos(ctx context.Context, locationID, userID int64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	const q = `INSERT INTO photos (location_id, user_id, url)
	           SELECT $1::bigint, $2::bigint, u FROM unnest($3::text[]) AS u
	           ON CONFLICT (location_id, url) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, locationID, userID, urls)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) ListPhotos(ctx context.Context, locationID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT url FROM photos WHERE location_id = $1 ORDER BY created_at, id`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
