package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/analytics"
	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/services/social/internal/store"
	"github.com/example/study-spots/services/social/internal/thread"
)

type replyRequest struct {
	ParentID   int64  `json:"parentId"`
	LocationID int64  `json:"locationId"`
	UserID     *int64 `json:"userId,omitempty"`
	Text       string `json:"text"`
}

type commentsResponse struct {
	Comments []thread.Record `json:"comments"`
}

// ReplyDeps wires the write handlers.
type ReplyDeps struct {
	Threads   store.ThreadStore
	Analytics *analytics.Publisher
	Log       *zap.Logger
}

// SubComment handles POST /subComment and answers 201 with no body.
func SubComment(d ReplyDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := appendReply(w, r, d); ok {
			w.WriteHeader(http.StatusCreated)
		}
	}
}

// CreateComment handles POST /comments and answers 201 with the stored record.
func CreateComment(d ReplyDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := appendReply(w, r, d); ok {
			api.WriteJSON(w, http.StatusCreated, rec)
		}
	}
}

// appendReply validates and stores the request body as the caller. On
// failure it has already written the response.
func appendReply(w http.ResponseWriter, r *http.Request, d ReplyDeps) (thread.Record, bool) {
	rid := httpserver.RequestIDFromContext(r.Context())
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
		return thread.Record{}, false
	}

	var req replyRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.InvalidJSON(w, rid)
		return thread.Record{}, false
	}
	if req.UserID != nil && *req.UserID != userID {
		api.Forbidden(w, api.CodeForbidden, "userId does not match the authenticated user", rid)
		return thread.Record{}, false
	}

	rec, err := thread.PrepareReply(thread.ReplyInput{
		LocationID: req.LocationID,
		UserID:     userID,
		ParentID:   req.ParentID,
		Text:       req.Text,
	})
	if err != nil {
		var ie *thread.InputError
		details := map[string]any{}
		if errors.As(err, &ie) {
			details["field"] = ie.Field
		}
		api.BadRequest(w, "VALIDATION_ERROR", err.Error(), rid, details)
		return thread.Record{}, false
	}

	saved, err := d.Threads.Append(r.Context(), rec)
	if err != nil {
		if errors.Is(err, store.ErrParentNotFound) {
			api.NotFound(w, "PARENT_NOT_FOUND", "parent review not found", rid)
			return thread.Record{}, false
		}
		d.Log.Error("append review", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
		return thread.Record{}, false
	}

	d.Analytics.Publish(analytics.SubjectSocialReviewCreated, "social.review_created", userID, map[string]any{
		"review_id":   saved.ID,
		"location_id": saved.LocationID,
		"parent_id":   saved.ParentID,
		"source":      "http",
	})
	return saved, true
}

// ListComments handles GET /comments?location_id=, returning flat records in
// creation order.
func ListComments(ts store.ThreadStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		locationID, ok := queryInt64(w, r, rid, "location_id")
		if !ok {
			return
		}
		if locationID == 0 {
			api.BadRequest(w, "VALIDATION_ERROR", "location_id is required", rid, map[string]any{"field": "location_id"})
			return
		}
		records, err := ts.ListByLocation(r.Context(), locationID)
		if err != nil {
			log.Error("list comments", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, commentsResponse{Comments: thread.SortByCreation(records)})
	}
}
