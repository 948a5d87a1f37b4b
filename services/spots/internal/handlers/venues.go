package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/internal/platform/metrics"
	"github.com/example/study-spots/services/spots/internal/cache"
	"github.com/example/study-spots/services/spots/internal/store"
)

type postPicsRequest struct {
	LocationID int64    `json:"location_id" validate:"gt=0"`
	Pics       []string `json:"pics" validate:"required,min=1,max=20,dive,url"`
}

type picsResponse struct {
	LocationID int64    `json:"location_id"`
	Photos     []string `json:"photos"`
}

// GetVenue handles GET /venues/{id}.
func GetVenue(ss store.SpotStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			api.BadRequest(w, "VALIDATION_ERROR", "id must be a positive integer", rid, map[string]any{"field": "id"})
			return
		}
		v, err := ss.GetVenue(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "VENUE_NOT_FOUND", "venue not found", rid)
				return
			}
			log.Error("get venue", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, v)
	}
}

// PostPics handles POST /pics, attaching photo urls to a stored venue.
func PostPics(ps store.PhotoStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
			return
		}

		var req postPicsRequest
		if !decodeJSON(w, r, rid, &req) || !validate(w, rid, &req) {
			return
		}

		if err := ps.AddPhotos(r.Context(), req.LocationID, userID, req.Pics); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "VENUE_NOT_FOUND", "venue not found", rid)
				return
			}
			log.Error("add photos", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		photos, err := ps.ListPhotos(r.Context(), req.LocationID)
		if err != nil {
			log.Error("list photos", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusCreated, picsResponse{LocationID: req.LocationID, Photos: photos})
	}
}

// GetPics handles GET /pics?location_id=. User photos come first, followed
// by the provider's photos for the venue.
func GetPics(ss store.SpotStore, ps store.PhotoStore, p Provider, c cache.Cache, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := queryID(r, "location_id")
		if !ok {
			api.BadRequest(w, "VALIDATION_ERROR", "location_id must be a positive integer", rid, map[string]any{"field": "location_id"})
			return
		}
		v, err := ss.GetVenue(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "VENUE_NOT_FOUND", "venue not found", rid)
				return
			}
			log.Error("get venue", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		stored, err := ps.ListPhotos(r.Context(), id)
		if err != nil {
			log.Error("list photos", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		fetched, err := cache.Fetch(r.Context(), c, log, cache.PhotosKey(v.ExternalID),
			func(ctx context.Context) ([]string, error) {
				return p.Photos(ctx, v.ExternalID)
			})
		if err != nil {
			metrics.ProviderErrors.WithLabelValues("photos").Inc()
			log.Warn("provider photos failed", zap.String("request_id", rid), zap.Error(err))
			api.BadGateway(w, "PROVIDER_UNAVAILABLE", "photos are unavailable", rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, picsResponse{LocationID: id, Photos: mergePhotos(stored, fetched)})
	}
}

func mergePhotos(lists ...[]string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, u := range list {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
