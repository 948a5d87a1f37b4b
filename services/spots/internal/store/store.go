// Package store persists venues seen in searches, community ratings, user
// favorites and user photos.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/study-spots/services/spots/internal/ranking"
)

var ErrNotFound = errors.New("not found")

// SpotStore keeps every venue a search has returned, keyed by provider id.
type SpotStore interface {
	// UpsertVenues stores venues and returns them, in the same order, with IDs set.
	UpsertVenues(ctx context.Context, venues []ranking.Venue) ([]ranking.Venue, error)
	// Signals returns rating averages for the given venue ids. Venues without
	// ratings are absent from the map.
	Signals(ctx context.Context, ids []int64) (map[int64]ranking.Signals, error)
	GetVenue(ctx context.Context, id int64) (ranking.Venue, error)
}

type Rating struct {
	LocationID int64     `json:"location_id"`
	UserID     int64     `json:"user_id"`
	Coffee     int       `json:"coffee"`
	Atmosphere int       `json:"atmosphere"`
	Comfort    int       `json:"comfort"`
	Food       int       `json:"food"`
	CreatedAt  time.Time `json:"created_at"`
}

type RatingSummary struct {
	LocationID int64   `json:"location_id"`
	Coffee     float64 `json:"coffee"`
	Atmosphere float64 `json:"atmosphere"`
	Comfort    float64 `json:"comfort"`
	Food       float64 `json:"food"`
	Count      int     `json:"count"`
}

func (s RatingSummary) Signals() ranking.Signals {
	return ranking.Signals{Coffee: s.Coffee, Atmosphere: s.Atmosphere, Comfort: s.Comfort, Food: s.Food}
}

// RatingStore keeps one rating per user and venue; rating again replaces it.
type RatingStore interface {
	AddRating(ctx context.Context, r Rating) (Rating, error)
	Summary(ctx context.Context, locationID int64) (RatingSummary, error)
	ListRatings(ctx context.Context, locationID int64) ([]Rating, error)
}

type FavoriteStore interface {
	// AddFavorite is idempotent. Unknown venues yield ErrNotFound.
	AddFavorite(ctx context.Context, userID, locationID int64) error
	// ListFavorites returns the user's venues, oldest favorite first.
	ListFavorites(ctx context.Context, userID int64) ([]ranking.Venue, error)
}

// PhotoStore keeps photo urls users attach to a venue.
type PhotoStore interface {
	// AddPhotos ignores urls the venue already has. Unknown venues yield ErrNotFound.
	AddPhotos(ctx context.Context, locationID, userID int64, urls []string) error
	// ListPhotos returns the venue's urls, oldest first.
	ListPhotos(ctx context.Context, locationID int64) ([]string, error)
}

// Store is everything the spots service persists.
type Store interface {
	SpotStore
	RatingStore
	FavoriteStore
	PhotoStore
}
