package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/study-spots/internal/platform/api"
)

// queryInt64 parses an optional id parameter. Missing means 0.
func queryInt64(w http.ResponseWriter, r *http.Request, rid, name string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		api.BadRequest(w, "VALIDATION_ERROR", name+" must be a non-negative integer", rid, map[string]any{"field": name})
		return 0, false
	}
	return n, true
}

// firstParam returns the first of names present in the query, or names[0].
func firstParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, n := range names {
		if strings.TrimSpace(q.Get(n)) != "" {
			return n
		}
	}
	return names[0]
}
