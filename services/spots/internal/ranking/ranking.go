// Package ranking re-orders provider search results by a user's preference dials.
//
// Each dial runs from 0 (very important) to 5 (indifferent). A dial's multiplier
// is MaxMultiplier minus the dial, and a venue's score is the sum of each
// multiplier times the venue's signal for that category. When the multipliers
// add up to NeutralTotal the provider order is returned untouched.
package ranking

import (
	"errors"
	"fmt"
	"sort"
)

const (
	Categories    = 4
	MaxMultiplier = 5
	NeutralTotal  = Categories * MaxMultiplier
)

var ErrInvalidInput = errors.New("invalid input")

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Signals holds a venue's raw per-category strength, one value per dial.
type Signals struct {
	Coffee     float64 `json:"coffee"`
	Atmosphere float64 `json:"atmosphere"`
	Comfort    float64 `json:"comfort"`
	Food       float64 `json:"food"`
}

type Venue struct {
	ID          int64       `json:"id"`
	ExternalID  string      `json:"external_id"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
	Address     string      `json:"address,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	URL         string      `json:"url,omitempty"`
	Rating      float64     `json:"rating,omitempty"`
	Signals     Signals     `json:"signals"`
}

type ScoredVenue struct {
	Venue
	Score        float64 `json:"score"`
	ProviderRank int     `json:"provider_rank"`
}

// Weights are the four preference dials.
type Weights struct {
	Coffee     int `json:"coffee"`
	Atmosphere int `json:"atmosphere"`
	Comfort    int `json:"comfort"`
	Food       int `json:"food"`
}

type dial struct {
	name  string
	value int
}

func (w Weights) dials() [Categories]dial {
	return [Categories]dial{
		{"coffee", w.Coffee},
		{"atmosphere", w.Atmosphere},
		{"comfort", w.Comfort},
		{"food", w.Food},
	}
}

// Validate rejects any dial outside [0, MaxMultiplier].
func (w Weights) Validate() error {
	for _, d := range w.dials() {
		if d.value < 0 || d.value > MaxMultiplier {
			return fmt.Errorf("%w: %s must be between 0 and %d, got %d", ErrInvalidInput, d.name, MaxMultiplier, d.value)
		}
	}
	return nil
}

// Multipliers returns coffee, atmosphere, comfort, food in that order.
func (w Weights) Multipliers() [Categories]int {
	var m [Categories]int
	for i, d := range w.dials() {
		m[i] = MaxMultiplier - d.value
	}
	return m
}

// Neutral reports whether scoring would be skipped for w.
func (w Weights) Neutral() bool {
	sum := 0
	for _, m := range w.Multipliers() {
		sum += m
	}
	return sum == NeutralTotal
}

// Score is the weighted sum of s under w's multipliers.
func (w Weights) Score(s Signals) float64 {
	m := w.Multipliers()
	return float64(m[0])*s.Coffee +
		float64(m[1])*s.Atmosphere +
		float64(m[2])*s.Comfort +
		float64(m[3])*s.Food
}

type Result struct {
	Scored bool          `json:"scored"`
	Venues []ScoredVenue `json:"businesses"`
}

// Rank scores venues under w and sorts them by score, highest first. Equal
// scores keep provider order. venues is not modified.
func Rank(venues []Venue, w Weights) (Result, error) {
	if err := w.Validate(); err != nil {
		return Result{}, err
	}

	out := make([]ScoredVenue, len(venues))
	if w.Neutral() {
		for i, v := range venues {
			out[i] = ScoredVenue{Venue: v, ProviderRank: i}
		}
		return Result{Scored: false, Venues: out}, nil
	}

	for i, v := range venues {
		out[i] = ScoredVenue{Venue: v, Score: w.Score(v.Signals), ProviderRank: i}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return Result{Scored: true, Venues: out}, nil
}
