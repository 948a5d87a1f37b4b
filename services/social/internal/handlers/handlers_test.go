package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/services/social/internal/store"
	"github.com/example/study-spots/services/social/internal/thread"
)

func setupReq(method, url, body string, userID int64) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	if userID > 0 {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	return req
}

func deps(ts store.ThreadStore) ReplyDeps {
	return ReplyDeps{Threads: ts, Log: zap.NewNop()}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func seedThread(t *testing.T, ts *store.InMemoryThreadStore) (a, b, c thread.Record) {
	t.Helper()
	ctx := context.Background()
	var err error
	if a, err = ts.Append(ctx, thread.Record{LocationID: 5, UserID: 1, Text: "A"}); err != nil {
		t.Fatal(err)
	}
	if b, err = ts.Append(ctx, thread.Record{LocationID: 5, UserID: 2, ParentID: a.ID, Text: "B"}); err != nil {
		t.Fatal(err)
	}
	if c, err = ts.Append(ctx, thread.Record{LocationID: 5, UserID: 3, Text: "C"}); err != nil {
		t.Fatal(err)
	}
	return a, b, c
}

func TestSubComment(t *testing.T) {
	ts := store.NewInMemoryThreadStore()
	a, _, _ := seedThread(t, ts)

	body := `{"parentId":` + itoa(a.ID) + `,"locationId":5,"userId":2,"text":"  nice spot  "}`
	rr := httptest.NewRecorder()
	SubComment(deps(ts)).ServeHTTP(rr, setupReq(http.MethodPost, "/subComment", body, 2))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rr.Body.String())
	}

	replies, _ := ts.ListByParent(context.Background(), 5, a.ID)
	last := replies[len(replies)-1]
	if last.Text != "nice spot" || last.UserID != 2 {
		t.Fatalf("unexpected stored reply %+v", last)
	}
}

func TestSubComment_Errors(t *testing.T) {
	ts := store.NewInMemoryThreadStore()
	a, _, _ := seedThread(t, ts)
	parent := itoa(a.ID)

	tests := []struct {
		name   string
		body   string
		userID int64
		want   int
		code   string
	}{
		{"anonymous", `{"parentId":` + parent + `,"locationId":5,"text":"hi"}`, 0, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad json", `{"parentId":`, 2, http.StatusBadRequest, "INVALID_JSON"},
		{"blank text", `{"parentId":` + parent + `,"locationId":5,"text":"   "}`, 2, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing location", `{"parentId":` + parent + `,"text":"hi"}`, 2, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"other user", `{"parentId":` + parent + `,"locationId":5,"userId":9,"text":"hi"}`, 2, http.StatusForbidden, "FORBIDDEN"},
		{"missing parent", `{"parentId":999,"locationId":5,"text":"hi"}`, 2, http.StatusNotFound, "PARENT_NOT_FOUND"},
		{"parent elsewhere", `{"parentId":` + parent + `,"locationId":6,"text":"hi"}`, 2, http.StatusNotFound, "PARENT_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			SubComment(deps(ts)).ServeHTTP(rr, setupReq(http.MethodPost, "/subComment", tt.body, tt.userID))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			var env struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, env.Error.Code)
			}
		})
	}
}

func TestCreateComment_ReturnsRecord(t *testing.T) {
	ts := store.NewInMemoryThreadStore()
	rr := httptest.NewRecorder()
	CreateComment(deps(ts)).ServeHTTP(rr,
		setupReq(http.MethodPost, "/comments", `{"parentId":0,"locationId":5,"text":"great outlets"}`, 4))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var rec thread.Record
	if err := json.NewDecoder(rr.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID == 0 || rec.UserID != 4 || rec.Text != "great outlets" || rec.CreatedAt.IsZero() {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestGetReviews(t *testing.T) {
	ts := store.NewInMemoryThreadStore()
	seedThread(t, ts)

	rr := httptest.NewRecorder()
	GetReviews(ts, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviews?locationId=5", "", 0))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body forestResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Reviews) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(body.Reviews))
	}
	a, c := body.Reviews[0], body.Reviews[1]
	if a.Text != "A" || len(a.Children) != 1 || a.Children[0].Text != "B" {
		t.Fatalf("unexpected first root %+v", a)
	}
	if c.Text != "C" || len(c.Children) != 0 {
		t.Fatalf("unexpected second root %+v", c)
	}
}

// brokenThreads returns records whose parent links were corrupted outside
// the store.
type brokenThreads struct {
	store.ThreadStore
	records []thread.Record
	err     error
}

func (b brokenThreads) ListByLocation(context.Context, int64) ([]thread.Record, error) {
	return b.records, b.err
}

func TestGetReviews_ToleratesBrokenLinks(t *testing.T) {
	ts := brokenThreads{records: []thread.Record{
		{ID: 1, LocationID: 5, Text: "root"},
		{ID: 2, LocationID: 5, ParentID: 99, Text: "orphan"},
		{ID: 3, LocationID: 5, ParentID: 4, Text: "loop a"},
		{ID: 4, LocationID: 5, ParentID: 3, Text: "loop b"},
	}}
	rr := httptest.NewRecorder()
	GetReviews(ts, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviews?locationId=5", "", 0))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body forestResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Reviews) != 3 {
		t.Fatalf("expected root, orphan and promoted loop record, got %d roots", len(body.Reviews))
	}
}

func TestGetReviews_Errors(t *testing.T) {
	rr := httptest.NewRecorder()
	GetReviews(store.NewInMemoryThreadStore(), zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviews", "", 0))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	GetReviews(brokenThreads{err: errors.New("db down")}, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviews?locationId=5", "", 0))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestGetReviews_LocationParamNames(t *testing.T) {
	ts := store.NewInMemoryThreadStore()
	seedThread(t, ts)

	for _, q := range []string{"location_id=5", "locationId=5", "location_id=5&locationId=9"} {
		rr := httptest.NewRecorder()
		GetReviews(ts, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviews?"+q, "", 0))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", q, rr.Code)
		}
		var body forestResponse
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Reviews) != 2 {
			t.Fatalf("%s: expected 2 roots, got %d", q, len(body.Reviews))
		}
	}

	rr := httptest.NewRecorder()
	GetReviews(ts, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviews?location_id=-1", "", 0))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetReviewsByParent(t *testing.T) {
	ts := store.NewInMemoryThreadStore()
	a, b, _ := seedThread(t, ts)

	rr := httptest.NewRecorder()
	GetReviewsByParent(ts, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviewsByParentId?parentId=0", "", 0))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var top levelResponse
	if err := json.NewDecoder(rr.Body).Decode(&top); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(top.Reviews) != 2 || top.Reviews[0].ID != a.ID {
		t.Fatalf("unexpected top level %+v", top.Reviews)
	}
	if top.Reviews[0].ReplyCount != 1 || !top.Reviews[0].HasReplies || top.Reviews[1].HasReplies {
		t.Fatalf("unexpected reply counts %+v", top.Reviews)
	}

	rr = httptest.NewRecorder()
	GetReviewsByParent(ts, zap.NewNop()).ServeHTTP(rr,
		setupReq(http.MethodGet, "/reviewsByParentId?locationId=5&parentId="+itoa(a.ID), "", 0))
	var replies levelResponse
	if err := json.NewDecoder(rr.Body).Decode(&replies); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(replies.Reviews) != 1 || replies.Reviews[0].ID != b.ID {
		t.Fatalf("unexpected replies %+v", replies.Reviews)
	}

	rr = httptest.NewRecorder()
	GetReviewsByParent(ts, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/reviewsByParentId?parentId=x", "", 0))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListComments(t *testing.T) {
	ts := store.NewInMemoryThreadStore()
	seedThread(t, ts)

	rr := httptest.NewRecorder()
	ListComments(ts, zap.NewNop()).ServeHTTP(rr, setupReq(http.MethodGet, "/comments?location_id=5", "", 0))
	var body commentsResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Comments) != 3 || body.Comments[0].Text != "A" || body.Comments[2].Text != "C" {
		t.Fatalf("unexpected comments %+v", body.Comments)
	}
}
