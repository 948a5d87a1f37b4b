package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/services/spots/internal/ranking"
	"github.com/example/study-spots/services/spots/internal/store"
)

type postFavoriteRequest struct {
	LocationID int64 `json:"location_id" validate:"gt=0"`
}

type favoriteResponse struct {
	UserID     int64 `json:"user_id"`
	LocationID int64 `json:"location_id"`
}

type favoritesResponse struct {
	Favorites []ranking.Venue `json:"favorites"`
}

// PostFavorite handles POST /favorites.
func PostFavorite(fs store.FavoriteStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
			return
		}

		var req postFavoriteRequest
		if !decodeJSON(w, r, rid, &req) || !validate(w, rid, &req) {
			return
		}

		if err := fs.AddFavorite(r.Context(), userID, req.LocationID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "VENUE_NOT_FOUND", "venue not found", rid)
				return
			}
			log.Error("add favorite", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusCreated, favoriteResponse{UserID: userID, LocationID: req.LocationID})
	}
}

// GetFavorites handles GET /favorites for the caller.
func GetFavorites(fs store.FavoriteStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
			return
		}
		venues, err := fs.ListFavorites(r.Context(), userID)
		if err != nil {
			log.Error("list favorites", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		if venues == nil {
			venues = []ranking.Venue{}
		}
		api.WriteJSON(w, http.StatusOK, favoritesResponse{Favorites: venues})
	}
}
