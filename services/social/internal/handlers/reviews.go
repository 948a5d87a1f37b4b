package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/internal/platform/metrics"
	"github.com/example/study-spots/services/social/internal/store"
	"github.com/example/study-spots/services/social/internal/thread"
)

type forestResponse struct {
	Reviews []*thread.Node `json:"reviews"`
}

type levelResponse struct {
	Reviews []thread.LevelNode `json:"reviews"`
}

// GetReviews handles GET /reviews?location_id= (locationId also works), returning the location's
// full reply forest. Broken parent links are logged and never fail the read.
func GetReviews(ts store.ThreadStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		param := firstParam(r, "location_id", "locationId")
		locationID, ok := queryInt64(w, r, rid, param)
		if !ok {
			return
		}
		if locationID == 0 {
			api.BadRequest(w, "VALIDATION_ERROR", param+" is required", rid, map[string]any{"field": param})
			return
		}

		records, err := ts.ListByLocation(r.Context(), locationID)
		if err != nil {
			log.Error("list reviews", zap.String("request_id", rid), zap.Int64("location_id", locationID), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		forest := thread.BuildForest(records)
		for _, wn := range forest.Warnings {
			metrics.ThreadIntegrityWarnings.WithLabelValues(string(wn.Kind)).Inc()
			log.Warn("review thread integrity",
				zap.String("request_id", rid),
				zap.Int64("location_id", locationID),
				zap.String("kind", string(wn.Kind)),
				zap.Int64("record_id", wn.RecordID),
				zap.Int64("parent_id", wn.ParentID))
		}
		api.WriteJSON(w, http.StatusOK, forestResponse{Reviews: forest.Roots})
	}
}

// GetReviewsByParent handles GET /reviewsByParentId?parentId=[&locationId=],
// returning one level of the thread with reply counts for lazy expansion.
func GetReviewsByParent(ts store.ThreadStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		parentID, ok := queryInt64(w, r, rid, "parentId")
		if !ok {
			return
		}
		locationID, ok := queryInt64(w, r, rid, "locationId")
		if !ok {
			return
		}

		records, err := ts.ListByParent(r.Context(), locationID, parentID)
		if err != nil {
			log.Error("list reviews by parent", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		ids := make([]int64, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
		}
		counts, err := ts.ReplyCounts(r.Context(), ids)
		if err != nil {
			log.Error("reply counts", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, levelResponse{Reviews: thread.Level(records, counts)})
	}
}
