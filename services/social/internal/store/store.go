// Package store persists review records as a flat parent-pointer table.
package store

import (
	"context"
	"errors"

	"github.com/example/study-spots/services/social/internal/thread"
)

// ErrParentNotFound means a reply named a parent that does not exist in the
// reply's location.
var ErrParentNotFound = errors.New("parent review not found")

// ThreadStore is the durable home of review records.
type ThreadStore interface {
	// Append assigns ID and CreatedAt and stores r.
	Append(ctx context.Context, r thread.Record) (thread.Record, error)
	// ListByLocation returns a location's records in creation order.
	ListByLocation(ctx context.Context, locationID int64) ([]thread.Record, error)
	// ListByParent returns the direct replies to parentID (0 for top-level
	// reviews) in creation order. locationID 0 matches any location.
	ListByParent(ctx context.Context, locationID, parentID int64) ([]thread.Record, error)
	// ReplyCounts returns the number of direct replies per id; ids without
	// replies may be absent.
	ReplyCounts(ctx context.Context, ids []int64) (map[int64]int, error)
}
