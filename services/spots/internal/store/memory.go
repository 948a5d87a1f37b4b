package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/study-spots/services/spots/internal/ranking"
)

type ratingKey struct {
	locationID int64
	userID     int64
}

type favorite struct {
	locationID int64
	seq        int
}

// InMemoryStore implements Store for development and tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	nextID     int64
	venues     map[int64]ranking.Venue
	byExternal map[string]int64
	ratings    map[ratingKey]Rating
	ratingSeq  map[ratingKey]int
	favorites  map[int64]map[int64]favorite
	photos     map[int64][]string
	seq        int
	now        func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		venues:     make(map[int64]ranking.Venue),
		byExternal: make(map[string]int64),
		ratings:    make(map[ratingKey]Rating),
		ratingSeq:  make(map[ratingKey]int),
		favorites:  make(map[int64]map[int64]favorite),
		photos:     make(map[int64][]string),
		now:        time.Now,
	}
}

func (s *InMemoryStore) UpsertVenues(_ context.Context, venues []ranking.Venue) ([]ranking.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ranking.Venue, len(venues))
	for i, v := range venues {
		if v.ExternalID == "" {
			return nil, fmt.Errorf("venue %q: external id is required", v.Name)
		}
		id, ok := s.byExternal[v.ExternalID]
		if !ok {
			s.nextID++
			id = s.nextID
			s.byExternal[v.ExternalID] = id
		}
		v.ID = id
		v.Signals = ranking.Signals{}
		s.venues[id] = v
		out[i] = v
	}
	return out, nil
}

func (s *InMemoryStore) Signals(_ context.Context, ids []int64) (map[int64]ranking.Signals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]ranking.Signals, len(ids))
	for _, id := range ids {
		if sum := s.summaryLocked(id); sum.Count > 0 {
			out[id] = sum.Signals()
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetVenue(_ context.Context, id int64) (ranking.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return ranking.Venue{}, ErrNotFound
	}
	if sum := s.summaryLocked(id); sum.Count > 0 {
		v.Signals = sum.Signals()
	}
	return v, nil
}

func (s *InMemoryStore) AddRating(_ context.Context, r Rating) (Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[r.LocationID]; !ok {
		return Rating{}, ErrNotFound
	}
	k := ratingKey{r.LocationID, r.UserID}
	r.CreatedAt = s.now().UTC()
	s.ratings[k] = r
	s.seq++
	s.ratingSeq[k] = s.seq
	return r, nil
}

func (s *InMemoryStore) Summary(_ context.Context, locationID int64) (RatingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked(locationID), nil
}

func (s *InMemoryStore) summaryLocked(locationID int64) RatingSummary {
	sum := RatingSummary{LocationID: locationID}
	for k, r := range s.ratings {
		if k.locationID != locationID {
			continue
		}
		sum.Coffee += float64(r.Coffee)
		sum.Atmosphere += float64(r.Atmosphere)
		sum.Comfort += float64(r.Comfort)
		sum.Food += float64(r.Food)
		sum.Count++
	}
	if sum.Count > 0 {
		n := float64(sum.Count)
		sum.Coffee /= n
		sum.Atmosphere /= n
		sum.Comfort /= n
		sum.Food /= n
	}
	return sum
}

func (s *InMemoryStore) ListRatings(_ context.Context, locationID int64) ([]Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type seqRating struct {
		seq int
		r   Rating
	}
	var rows []seqRating
	for k, r := range s.ratings {
		if k.locationID == locationID {
			rows = append(rows, seqRating{s.ratingSeq[k], r})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]Rating, len(rows))
	for i, row := range rows {
		out[i] = row.r
	}
	return out, nil
}

func (s *InMemoryStore) AddFavorite(_ context.Context, userID, locationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[locationID]; !ok {
		return ErrNotFound
	}
	favs := s.favorites[userID]
	if favs == nil {
		favs = make(map[int64]favorite)
		s.favorites[userID] = favs
	}
	if _, ok := favs[locationID]; ok {
		return nil
	}
	s.seq++
	favs[locationID] = favorite{locationID: locationID, seq: s.seq}
	return nil
}

func (s *InMemoryStore) ListFavorites(_ context.Context, userID int64) ([]ranking.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	favs := make([]favorite, 0, len(s.favorites[userID]))
	for _, f := range s.favorites[userID] {
		favs = append(favs, f)
	}
	sort.Slice(favs, func(i, j int) bool { return favs[i].seq < favs[j].seq })

	out := make([]ranking.Venue, 0, len(favs))
	for _, f := range favs {
		out = append(out, s.venues[f.locationID])
	}
	return out, nil
}

func (s *InMemoryStore) AddPhotos(_ context.Context, locationID, _ int64, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.venues[locationID]; !ok {
		return ErrNotFound
	}
	have := make(map[string]bool, len(s.photos[locationID]))
	for _, u := range s.photos[locationID] {
		have[u] = true
	}
	for _, u := range urls {
		if have[u] {
			continue
		}
		have[u] = true
		s.photos[locationID] = append(s.photos[locationID], u)
	}
	return nil
}

func (s *InMemoryStore) ListPhotos(_ context.Context, locationID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.photos[locationID]...), nil
}
