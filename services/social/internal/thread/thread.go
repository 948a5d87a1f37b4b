// Package thread turns flat parent-pointer review records into nested reply
// trees and prepares new replies for storage.
//
// Reads are tolerant: records whose parent cannot be resolved, points at
// another location, or sits on a parent cycle are shown as top-level
// entries and reported as Warnings rather than failing the read.
package thread

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLength bounds a reply, in characters.
const MaxTextLength = 2000

var ErrInvalidInput = errors.New("invalid input")

// Record is one stored review or reply. ParentID 0 marks a top-level review.
type Record struct {
	ID         int64     `json:"id"`
	LocationID int64     `json:"locationId"`
	UserID     int64     `json:"userId"`
	ParentID   int64     `json:"parentId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Node struct {
	Record
	Children []*Node `json:"children"`
}

type WarningKind string

const (
	WarningOrphan        WarningKind = "orphan"
	WarningCycle         WarningKind = "cycle"
	WarningDuplicate     WarningKind = "duplicate"
	WarningForeignParent WarningKind = "foreign_parent"
)

// Warning reports a record that could not be placed under its declared parent.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	RecordID int64       `json:"recordId"`
	ParentID int64       `json:"parentId"`
}

type Forest struct {
	Roots    []*Node
	Warnings []Warning
}

// Less orders records by creation: CreatedAt, then ID.
func Less(a, b Record) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortByCreation returns a sorted copy of records.
func SortByCreation(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// BuildForest nests records under their parents. Every distinct record id
// appears exactly once in the result. Roots and siblings are in creation
// order. records is not modified.
func BuildForest(records []Record) Forest {
	var f Forest

	// First occurrence of an id wins.
	seen := make(map[int64]bool, len(records))
	unique := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			f.Warnings = append(f.Warnings, Warning{Kind: WarningDuplicate, RecordID: r.ID, ParentID: r.ParentID})
			continue
		}
		seen[r.ID] = true
		unique = append(unique, r)
	}
	recs := SortByCreation(unique)

	index := make(map[int64]int, len(recs))
	for i, r := range recs {
		index[r.ID] = i
	}

	const root = -1
	parent := make([]int, len(recs))
	placed := make([]bool, len(recs))
	children := make(map[int][]int)

	for i, r := range recs {
		parent[i] = root
		if r.ParentID == 0 {
			placed[i] = true
			continue
		}
		p, ok := index[r.ParentID]
		switch {
		case !ok:
			placed[i] = true
			f.Warnings = append(f.Warnings, Warning{Kind: WarningOrphan, RecordID: r.ID, ParentID: r.ParentID})
		case recs[p].LocationID != r.LocationID:
			placed[i] = true
			f.Warnings = append(f.Warnings, Warning{Kind: WarningForeignParent, RecordID: r.ID, ParentID: r.ParentID})
		default:
			children[p] = append(children[p], i)
		}
	}

	// attach walks down from start, claiming every unplaced descendant.
	stack := make([]int, 0, len(recs))
	attach := func(start int) {
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, c := range children[n] {
				if placed[c] {
					continue
				}
				placed[c] = true
				parent[c] = n
				stack = append(stack, c)
			}
		}
	}

	for i := range recs {
		if placed[i] && parent[i] == root {
			attach(i)
		}
	}

	// Whatever is still unplaced is on a parent cycle or hangs below one.
	// Walk up from the earliest unplaced record until a record repeats,
	// then promote the earliest record on that loop. Records below the
	// cycle keep their parents.
	walked := make([]int, len(recs))
	for i := range recs {
		if placed[i] {
			continue
		}
		cur := i
		for walked[cur] != i+1 {
			walked[cur] = i + 1
			cur = index[recs[cur].ParentID]
		}
		promote := cur
		for n := index[recs[cur].ParentID]; n != cur; n = index[recs[n].ParentID] {
			if n < promote {
				promote = n
			}
		}
		placed[promote] = true
		f.Warnings = append(f.Warnings, Warning{Kind: WarningCycle, RecordID: recs[promote].ID, ParentID: recs[promote].ParentID})
		attach(promote)
	}

	nodes := make([]*Node, len(recs))
	for i, r := range recs {
		nodes[i] = &Node{Record: r, Children: []*Node{}}
	}
	f.Roots = make([]*Node, 0)
	for i := range recs {
		if parent[i] == root {
			f.Roots = append(f.Roots, nodes[i])
			continue
		}
		p := nodes[parent[i]]
		p.Children = append(p.Children, nodes[i])
	}
	return f
}

// Count returns the number of nodes in the forest.
func (f Forest) Count() int {
	n := 0
	stack := append([]*Node(nil), f.Roots...)
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, top.Children...)
	}
	return n
}

// ReplyInput is an unvalidated new review or reply.
type ReplyInput struct {
	LocationID int64
	UserID     int64
	ParentID   int64
	Text       string
}

// InputError names the field that failed validation. It matches ErrInvalidInput.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// PrepareReply validates in and returns the record to append. The id and
// creation time are left for the store to assign.
func PrepareReply(in ReplyInput) (Record, error) {
	if in.LocationID <= 0 {
		return Record{}, &InputError{Field: "locationId", Reason: "must be a positive id"}
	}
	if in.UserID <= 0 {
		return Record{}, &InputError{Field: "userId", Reason: "must be a positive id"}
	}
	if in.ParentID < 0 {
		return Record{}, &InputError{Field: "parentId", Reason: "must be 0 or a positive id"}
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Record{}, &InputError{Field: "text", Reason: "must not be blank"}
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Record{}, &InputError{Field: "text", Reason: fmt.Sprintf("must be at most %d characters", MaxTextLength)}
	}
	return Record{
		LocationID: in.LocationID,
		UserID:     in.UserID,
		ParentID:   in.ParentID,
		Text:       text,
	}, nil
}

// LevelNode is one record of a single thread level with its reply count, for
// clients that expand replies on demand.
type LevelNode struct {
	Record
	ReplyCount int  `json:"replyCount"`
	HasReplies bool `json:"hasReplies"`
}

// Level returns records in creation order annotated from replyCounts, which
// maps record id to its number of direct replies.
func Level(records []Record, replyCounts map[int64]int) []LevelNode {
	sorted := SortByCreation(records)
	out := make([]LevelNode, len(sorted))
	for i, r := range sorted {
		n := replyCounts[r.ID]
		out[i] = LevelNode{Record: r, ReplyCount: n, HasReplies: n > 0}
	}
	return out
}
