package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/validation"
	"github.com/example/study-spots/services/spots/internal/ranking"
)

// Provider is the place-search collaborator.
type Provider interface {
	Search(ctx context.Context, location string, radiusMeters int) ([]ranking.Venue, error)
	Photos(ctx context.Context, externalID string) ([]string, error)
}

// decodeJSON writes a 400 and returns false when the body is not valid JSON.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := api.DecodeJSON(w, r, dst); err != nil {
		api.InvalidJSON(w, rid)
		return false
	}
	return true
}

// validate writes a 400 VALIDATION_ERROR and returns false when v breaks its rules.
func validate(w http.ResponseWriter, rid string, v any) bool {
	if verr := validation.Struct(v); verr != nil {
		validation.Write(w, verr, rid)
		return false
	}
	return true
}

// queryInt parses an optional integer parameter. Missing means def.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func queryID(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(name)), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func invalidParam(w http.ResponseWriter, rid, name string) {
	api.BadRequest(w, validation.Code, name+" must be an integer", rid, map[string]any{"field": name})
}
