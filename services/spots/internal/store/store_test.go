package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/example/study-spots/services/spots/internal/ranking"
)

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func seed(t *testing.T, s *InMemoryStore) []ranking.Venue {
	t.Helper()
	out, err := s.UpsertVenues(context.Background(), []ranking.Venue{
		{ExternalID: "cafe-1", Name: "Quiet Cafe"},
		{ExternalID: "lib-2", Name: "Library Lounge"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return out
}

func TestUpsertVenues_Idempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	first := seed(t, s)
	if first[0].ID == 0 || first[1].ID == 0 || first[0].ID == first[1].ID {
		t.Fatalf("expected distinct ids, got %+v", first)
	}

	again, err := s.UpsertVenues(ctx, []ranking.Venue{
		{ExternalID: "lib-2", Name: "Library Lounge (renamed)"},
		{ExternalID: "park-3", Name: "Park Bench"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if again[0].ID != first[1].ID {
		t.Fatalf("expected lib-2 to keep id %d, got %d", first[1].ID, again[0].ID)
	}
	v, err := s.GetVenue(ctx, first[1].ID)
	if err != nil || v.Name != "Library Lounge (renamed)" {
		t.Fatalf("v=%+v err=%v", v, err)
	}
	if again[1].ID <= first[1].ID {
		t.Fatalf("expected new id for park-3, got %d", again[1].ID)
	}
}

func TestUpsertVenues_RequiresExternalID(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.UpsertVenues(context.Background(), []ranking.Venue{{Name: "nameless"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetVenue_NotFound(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.GetVenue(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRatings_SummaryAndSignals(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	vs := seed(t, s)
	id := vs[0].ID

	for _, r := range []Rating{
		{LocationID: id, UserID: 1, Coffee: 5, Atmosphere: 4, Comfort: 3, Food: 1},
		{LocationID: id, UserID: 2, Coffee: 3, Atmosphere: 2, Comfort: 3, Food: 3},
	} {
		if _, err := s.AddRating(ctx, r); err != nil {
			t.Fatalf("add rating: %v", err)
		}
	}

	sum, err := s.Summary(ctx, id)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Count != 2 || sum.Coffee != 4 || sum.Atmosphere != 3 || sum.Comfort != 3 || sum.Food != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	sig, err := s.Signals(ctx, []int64{id, vs[1].ID})
	if err != nil {
		t.Fatalf("signals: %v", err)
	}
	if _, ok := sig[vs[1].ID]; ok {
		t.Fatal("unrated venue must be absent from signals")
	}
	if sig[id] != (ranking.Signals{Coffee: 4, Atmosphere: 3, Comfort: 3, Food: 2}) {
		t.Fatalf("unexpected signals %+v", sig[id])
	}
}

func TestAddRating_ReplacesUsersRating(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	id := seed(t, s)[0].ID

	_, _ = s.AddRating(ctx, Rating{LocationID: id, UserID: 1, Coffee: 1, Atmosphere: 1, Comfort: 1, Food: 1})
	_, _ = s.AddRating(ctx, Rating{LocationID: id, UserID: 1, Coffee: 5, Atmosphere: 5, Comfort: 5, Food: 5})

	list, _ := s.ListRatings(ctx, id)
	if len(list) != 1 || list[0].Coffee != 5 {
		t.Fatalf("expected single replaced rating, got %+v", list)
	}
}

func TestAddRating_UnknownVenue(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.AddRating(context.Background(), Rating{LocationID: 9, UserID: 1, Coffee: 1, Atmosphere: 1, Comfort: 1, Food: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFavorites(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	vs := seed(t, s)

	if err := s.AddFavorite(ctx, 7, vs[1].ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddFavorite(ctx, 7, vs[0].ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddFavorite(ctx, 7, vs[1].ID); err != nil {
		t.Fatalf("repeat add: %v", err)
	}
	if err := s.AddFavorite(ctx, 7, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	favs, err := s.ListFavorites(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(favs) != 2 || favs[0].ExternalID != "lib-2" || favs[1].ExternalID != "cafe-1" {
		t.Fatalf("unexpected favorites %+v", favs)
	}

	other, _ := s.ListFavorites(ctx, 8)
	if len(other) != 0 {
		t.Fatalf("expected no favorites for other user, got %+v", other)
	}
}

func TestPhotos(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	vs := seed(t, s)

	if err := s.AddPhotos(ctx, vs[0].ID, 3, []string{"http://p/1", "http://p/2"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddPhotos(ctx, vs[0].ID, 4, []string{"http://p/2", "http://p/3", "http://p/3"}); err != nil {
		t.Fatalf("add again: %v", err)
	}
	if err := s.AddPhotos(ctx, 999, 3, []string{"http://p/x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, err := s.ListPhotos(ctx, vs[0].ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"http://p/1", "http://p/2", "http://p/3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("photos = %v, want %v", got, want)
	}

	none, _ := s.ListPhotos(ctx, vs[1].ID)
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}
