package thread

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// rec builds a record in location 5 whose creation order follows id.
func rec(id, parent int64, text string) Record {
	return Record{ID: id, LocationID: 5, UserID: 1, ParentID: parent, Text: text, CreatedAt: base.Add(time.Duration(id) * time.Minute)}
}

// shape renders a forest as "A[B] C" for compact comparison.
func shape(nodes []*Node) string {
	out := ""
	for i, n := range nodes {
		if i > 0 {
			out += " "
		}
		label := n.Text
		if label == "" {
			label = fmt.Sprint(n.ID)
		}
		out += label
		if len(n.Children) > 0 {
			out += "[" + shape(n.Children) + "]"
		}
	}
	return out
}

func collectIDs(f Forest) map[int64]int {
	seen := map[int64]int{}
	stack := append([]*Node(nil), f.Roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		seen[n.ID]++
		stack = append(stack, n.Children...)
	}
	return seen
}

func kinds(ws []Warning) []WarningKind {
	out := make([]WarningKind, len(ws))
	for i, w := range ws {
		out[i] = w.Kind
	}
	return out
}

func TestBuildForest_EndToEnd(t *testing.T) {
	f := BuildForest([]Record{rec(1, 0, "A"), rec(2, 1, "B"), rec(3, 0, "C")})
	if got := shape(f.Roots); got != "A[B] C" {
		t.Fatalf("forest = %q, want %q", got, "A[B] C")
	}
	if len(f.Warnings) != 0 {
		t.Fatalf("unexpected warnings %+v", f.Warnings)
	}
	if f.Roots[0].Children[0].Children == nil || f.Roots[1].Children == nil {
		t.Fatal("leaf children must be empty, not nil")
	}
}

func TestBuildForest_OrphanTolerance(t *testing.T) {
	f := BuildForest([]Record{rec(1, 0, ""), rec(2, 99, "")})
	if got := shape(f.Roots); got != "1 2" {
		t.Fatalf("forest = %q, want two childless roots", got)
	}
	want := []Warning{{Kind: WarningOrphan, RecordID: 2, ParentID: 99}}
	if !reflect.DeepEqual(f.Warnings, want) {
		t.Fatalf("warnings = %+v, want %+v", f.Warnings, want)
	}
}

func TestBuildForest_CreationOrderNotInputOrder(t *testing.T) {
	in := []Record{rec(4, 1, "D"), rec(3, 0, "C"), rec(2, 1, "B"), rec(1, 0, "A")}
	snapshot := append([]Record(nil), in...)

	f := BuildForest(in)
	if got := shape(f.Roots); got != "A[B D] C" {
		t.Fatalf("forest = %q", got)
	}
	if !reflect.DeepEqual(in, snapshot) {
		t.Fatal("input was reordered")
	}
}

func TestBuildForest_SameTimestampOrdersByID(t *testing.T) {
	a := Record{ID: 7, LocationID: 5, Text: "late id", CreatedAt: base}
	b := Record{ID: 3, LocationID: 5, Text: "early id", CreatedAt: base}
	f := BuildForest([]Record{a, b})
	if f.Roots[0].ID != 3 || f.Roots[1].ID != 7 {
		t.Fatalf("unexpected root order %d, %d", f.Roots[0].ID, f.Roots[1].ID)
	}
}

func TestBuildForest_DeepChainIsIterative(t *testing.T) {
	const depth = 200000
	records := make([]Record, depth)
	for i := range records {
		records[i] = rec(int64(i+1), int64(i), "")
	}
	f := BuildForest(records)
	if len(f.Roots) != 1 {
		t.Fatalf("expected one root, got %d", len(f.Roots))
	}
	if got := f.Count(); got != depth {
		t.Fatalf("expected %d nodes, got %d", depth, got)
	}
}

func TestBuildForest_SelfParentCycle(t *testing.T) {
	f := BuildForest([]Record{rec(1, 0, "A"), rec(2, 2, "B")})
	if got := shape(f.Roots); got != "A B" {
		t.Fatalf("forest = %q", got)
	}
	if got := kinds(f.Warnings); !reflect.DeepEqual(got, []WarningKind{WarningCycle}) {
		t.Fatalf("warnings = %v", got)
	}
}

func TestBuildForest_CycleBrokenAtEarliestRecord(t *testing.T) {
	// 2 -> 4 -> 3 -> 2 forms a cycle; 5 hangs below 3.
	f := BuildForest([]Record{
		rec(1, 0, "A"),
		rec(2, 4, "B"),
		rec(3, 2, "C"),
		rec(4, 3, "D"),
		rec(5, 3, "E"),
	})
	if got := shape(f.Roots); got != "A B[C[D E]]" {
		t.Fatalf("forest = %q", got)
	}
	want := []Warning{{Kind: WarningCycle, RecordID: 2, ParentID: 4}}
	if !reflect.DeepEqual(f.Warnings, want) {
		t.Fatalf("warnings = %+v, want %+v", f.Warnings, want)
	}
}

func TestBuildForest_ReplyBelowCycleKeepsParent(t *testing.T) {
	// R replies to B; B and C point at each other.
	f := BuildForest([]Record{rec(1, 2, "R"), rec(2, 3, "B"), rec(3, 2, "C")})
	if got := shape(f.Roots); got != "B[R C]" {
		t.Fatalf("forest = %q, want %q", got, "B[R C]")
	}
	want := []Warning{{Kind: WarningCycle, RecordID: 2, ParentID: 3}}
	if !reflect.DeepEqual(f.Warnings, want) {
		t.Fatalf("warnings = %+v, want %+v", f.Warnings, want)
	}
}

func TestBuildForest_TwoSeparateCycles(t *testing.T) {
	f := BuildForest([]Record{
		rec(1, 2, "A"), rec(2, 1, "B"),
		rec(3, 4, "C"), rec(4, 3, "D"),
	})
	if got := shape(f.Roots); got != "A[B] C[D]" {
		t.Fatalf("forest = %q", got)
	}
	if got := kinds(f.Warnings); !reflect.DeepEqual(got, []WarningKind{WarningCycle, WarningCycle}) {
		t.Fatalf("warnings = %v", got)
	}
}

func TestBuildForest_ForeignParent(t *testing.T) {
	other := rec(1, 0, "A")
	other.LocationID = 6
	reply := rec(2, 1, "B")

	f := BuildForest([]Record{other, reply})
	if got := shape(f.Roots); got != "A B" {
		t.Fatalf("forest = %q", got)
	}
	want := []Warning{{Kind: WarningForeignParent, RecordID: 2, ParentID: 1}}
	if !reflect.DeepEqual(f.Warnings, want) {
		t.Fatalf("warnings = %+v", f.Warnings)
	}
}

func TestBuildForest_DuplicateFirstWins(t *testing.T) {
	first := rec(2, 1, "first")
	dup := rec(2, 0, "second")
	f := BuildForest([]Record{rec(1, 0, "A"), first, dup})
	if got := shape(f.Roots); got != "A[first]" {
		t.Fatalf("forest = %q", got)
	}
	want := []Warning{{Kind: WarningDuplicate, RecordID: 2, ParentID: 0}}
	if !reflect.DeepEqual(f.Warnings, want) {
		t.Fatalf("warnings = %+v", f.Warnings)
	}
}

func TestBuildForest_Empty(t *testing.T) {
	f := BuildForest(nil)
	if f.Roots == nil || len(f.Roots) != 0 || len(f.Warnings) != 0 {
		t.Fatalf("unexpected forest %+v", f)
	}
}

func TestBuildForest_Completeness(t *testing.T) {
	// A mix of every irregularity; each unique id must appear exactly once.
	records := []Record{
		rec(1, 0, ""), rec(2, 1, ""), rec(3, 2, ""), rec(4, 1, ""),
		rec(5, 77, ""), rec(6, 5, ""),
		rec(7, 9, ""), rec(8, 7, ""), rec(9, 8, ""), rec(10, 9, ""),
		rec(11, 11, ""),
		rec(3, 0, ""),
	}
	f := BuildForest(records)
	seen := collectIDs(f)
	if len(seen) != 11 {
		t.Fatalf("expected 11 distinct records, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("record %d appears %d times", id, n)
		}
	}
}

func TestPrepareReply(t *testing.T) {
	got, err := PrepareReply(ReplyInput{ParentID: 1, LocationID: 5, UserID: 2, Text: "nice spot"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Record{ParentID: 1, LocationID: 5, UserID: 2, Text: "nice spot"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	got, err = PrepareReply(ReplyInput{LocationID: 5, UserID: 2, Text: "  padded\n"})
	if err != nil || got.Text != "padded" || got.ParentID != 0 || got.ID != 0 {
		t.Fatalf("got %+v err=%v", got, err)
	}
}

func TestPrepareReply_Invalid(t *testing.T) {
	long := make([]rune, MaxTextLength+1)
	for i := range long {
		long[i] = 'x'
	}
	tests := []struct {
		name  string
		in    ReplyInput
		field string
	}{
		{"blank text", ReplyInput{ParentID: 1, LocationID: 5, UserID: 2, Text: "  "}, "text"},
		{"empty text", ReplyInput{LocationID: 5, UserID: 2}, "text"},
		{"too long", ReplyInput{LocationID: 5, UserID: 2, Text: string(long)}, "text"},
		{"no location", ReplyInput{UserID: 2, Text: "hi"}, "locationId"},
		{"no user", ReplyInput{LocationID: 5, Text: "hi"}, "userId"},
		{"negative parent", ReplyInput{LocationID: 5, UserID: 2, ParentID: -1, Text: "hi"}, "parentId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PrepareReply(tt.in)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var ie *InputError
			if !errors.As(err, &ie) || ie.Field != tt.field {
				t.Fatalf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	nodes := Level([]Record{rec(3, 0, "C"), rec(1, 0, "A")}, map[int64]int{1: 2})
	if len(nodes) != 2 || nodes[0].ID != 1 || nodes[1].ID != 3 {
		t.Fatalf("unexpected order %+v", nodes)
	}
	if nodes[0].ReplyCount != 2 || !nodes[0].HasReplies {
		t.Fatalf("unexpected counts for 1: %+v", nodes[0])
	}
	if nodes[1].ReplyCount != 0 || nodes[1].HasReplies {
		t.Fatalf("unexpected counts for 3: %+v", nodes[1])
	}
}
