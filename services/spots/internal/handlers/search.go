package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/analytics"
	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/internal/platform/metrics"
	"github.com/example/study-spots/internal/platform/validation"
	"github.com/example/study-spots/services/spots/internal/cache"
	"github.com/example/study-spots/services/spots/internal/provider"
	"github.com/example/study-spots/services/spots/internal/ranking"
	"github.com/example/study-spots/services/spots/internal/store"
)

type searchQuery struct {
	Coffee     int    `json:"coffee" validate:"gte=0,lte=5"`
	Atmosphere int    `json:"atmosphere" validate:"gte=0,lte=5"`
	Comfort    int    `json:"comfort" validate:"gte=0,lte=5"`
	Food       int    `json:"food" validate:"gte=0,lte=5"`
	Location   string `json:"location" validate:"required,max=200"`
	Radius     int    `json:"radius" validate:"gte=0"`
}

// SearchDeps wires the /search handler.
type SearchDeps struct {
	Spots         store.SpotStore
	Provider      Provider
	Cache         cache.Cache
	Analytics     *analytics.Publisher
	Log           *zap.Logger
	DefaultRadius int
}

// Search handles GET /search?coffee&atmosphere&comfort&food&location&radius.
// Dials default to 0.
func Search(d SearchDeps) http.HandlerFunc {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		q := searchQuery{Location: strings.TrimSpace(r.URL.Query().Get("location"))}
		for _, p := range []struct {
			name string
			dst  *int
			def  int
		}{
			{"coffee", &q.Coffee, 0},
			{"atmosphere", &q.Atmosphere, 0},
			{"comfort", &q.Comfort, 0},
			{"food", &q.Food, 0},
			{"radius", &q.Radius, d.DefaultRadius},
		} {
			v, ok := queryInt(r, p.name, p.def)
			if !ok {
				invalidParam(w, rid, p.name)
				return
			}
			*p.dst = v
		}
		if !validate(w, rid, &q) {
			return
		}
		weights := ranking.Weights{Coffee: q.Coffee, Atmosphere: q.Atmosphere, Comfort: q.Comfort, Food: q.Food}
		if err := weights.Validate(); err != nil {
			api.BadRequest(w, validation.Code, err.Error(), rid, nil)
			return
		}

		radius := provider.ClampRadius(q.Radius)
		candidates, err := cache.Fetch(r.Context(), d.Cache, log, cache.SearchKey(q.Location, radius),
			func(ctx context.Context) ([]ranking.Venue, error) {
				return d.Provider.Search(ctx, q.Location, radius)
			})
		if err != nil {
			metrics.ProviderErrors.WithLabelValues("search").Inc()
			log.Warn("provider search failed", zap.String("request_id", rid), zap.Error(err))
			api.BadGateway(w, "PROVIDER_UNAVAILABLE", "place search is unavailable", rid)
			return
		}

		venues, err := d.Spots.UpsertVenues(r.Context(), candidates)
		if err != nil {
			log.Error("upsert venues", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		if !weights.Neutral() {
			ids := make([]int64, len(venues))
			for i, v := range venues {
				ids[i] = v.ID
			}
			signals, err := d.Spots.Signals(r.Context(), ids)
			if err != nil {
				log.Error("venue signals", zap.String("request_id", rid), zap.Error(err))
				api.Internal(w, rid)
				return
			}
			for i := range venues {
				venues[i].Signals = signals[venues[i].ID]
			}
		}

		res, err := ranking.Rank(venues, weights)
		if err != nil {
			log.Error("rank venues", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		mode := "passthrough"
		if res.Scored {
			mode = "ranked"
		}
		metrics.Searches.WithLabelValues(mode).Inc()
		uid, _ := auth.UserIDFromContext(r.Context())
		d.Analytics.Publish(analytics.SubjectSpotsSearched, "spots.searched", uid, map[string]any{
			"location": q.Location,
			"radius":   radius,
			"mode":     mode,
			"results":  len(res.Venues),
		})

		api.WriteJSON(w, http.StatusOK, res)
	}
}
