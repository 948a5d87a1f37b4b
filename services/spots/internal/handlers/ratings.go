package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/services/spots/internal/store"
)

type postRatingRequest struct {
	LocationID int64 `json:"location_id" validate:"gt=0"`
	Coffee     int   `json:"coffee" validate:"min=1,max=5"`
	Atmosphere int   `json:"atmosphere" validate:"min=1,max=5"`
	Comfort    int   `json:"comfort" validate:"min=1,max=5"`
	Food       int   `json:"food" validate:"min=1,max=5"`
}

type ratingsResponse struct {
	Ratings []store.Rating `json:"ratings"`
}

// PostRating handles POST /ratings. Rating the same venue again replaces the
// caller's previous rating.
func PostRating(rs store.RatingStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
			return
		}

		var req postRatingRequest
		if !decodeJSON(w, r, rid, &req) || !validate(w, rid, &req) {
			return
		}

		saved, err := rs.AddRating(r.Context(), store.Rating{
			LocationID: req.LocationID,
			UserID:     userID,
			Coffee:     req.Coffee,
			Atmosphere: req.Atmosphere,
			Comfort:    req.Comfort,
			Food:       req.Food,
		})
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "VENUE_NOT_FOUND", "venue not found", rid)
				return
			}
			log.Error("add rating", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusCreated, saved)
	}
}

// GetRatings handles GET /ratings?location_id=[&average=1].
func GetRatings(rs store.RatingStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		locationID, ok := queryID(r, "location_id")
		if !ok {
			api.BadRequest(w, "VALIDATION_ERROR", "location_id must be a positive integer", rid, map[string]any{"field": "location_id"})
			return
		}

		// Any non-empty average value selects the summary.
		if strings.TrimSpace(r.URL.Query().Get("average")) != "" {
			sum, err := rs.Summary(r.Context(), locationID)
			if err != nil {
				log.Error("rating summary", zap.String("request_id", rid), zap.Error(err))
				api.Internal(w, rid)
				return
			}
			api.WriteJSON(w, http.StatusOK, sum)
			return
		}

		list, err := rs.ListRatings(r.Context(), locationID)
		if err != nil {
			log.Error("list ratings", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		if list == nil {
			list = []store.Rating{}
		}
		api.WriteJSON(w, http.StatusOK, ratingsResponse{Ratings: list})
	}
}
