package reddit

import (
	"context"
	"fmt"
	"testing"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want Sort
		ok   bool
	}{
		{"", SortHot, true},
		{"Hot", SortHot, true},
		{" top ", SortTop, true},
		{"rising", SortRising, true},
		{"controversial", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSort(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseSort(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSortNextCycles(t *testing.T) {
	s := SortHot
	seen := map[Sort]bool{}
	for i := 0; i < len(sortCycle); i++ {
		seen[s] = true
		s = s.Next()
	}
	if s != SortHot {
		t.Fatalf("cycle ended at %q, want hot", s)
	}
	if len(seen) != len(sortCycle) {
		t.Fatalf("visited %d sorts, want %d", len(seen), len(sortCycle))
	}
	if Sort("bogus").Next() != SortHot {
		t.Fatalf("unknown sort should restart at hot")
	}
}

func TestClassify(t *testing.T) {
	wrapped := fmt.Errorf("fetch listing: %w", &APIError{Kind: KindNotFound, Status: 404})
	if Classify(wrapped) != KindNotFound {
		t.Fatalf("Classify(wrapped) = %v, want not found", Classify(wrapped))
	}
	if Classify(context.DeadlineExceeded) != KindTransient {
		t.Fatalf("deadline should classify as transient")
	}
	if !KindRateLimited.Retryable() || KindFatal.Retryable() || KindNotFound.Retryable() {
		t.Fatalf("Retryable mapping wrong")
	}
}

func TestDecodeToken(t *testing.T) {
	parent, ids, err := decodeToken(encodeToken("", []string{"x", "y"}))
	if err != nil {
		t.Fatalf("decodeToken returned error: %v", err)
	}
	if parent != "" || len(ids) != 2 || ids[1] != "y" {
		t.Fatalf("decodeToken = %q %v", parent, ids)
	}
	if _, _, err := decodeToken("p:"); err == nil {
		t.Fatalf("expected error for empty id list")
	}
}

func TestThreadToken(t *testing.T) {
	token := threadToken("c9")
	if !IsThreadToken(token) {
		t.Fatalf("IsThreadToken(%q) = false", token)
	}
	for _, other := range []string{"", "thread/", encodeToken("c9", []string{"a"}), "thread/a:b"} {
		if IsThreadToken(other) {
			t.Fatalf("IsThreadToken(%q) = true", other)
		}
	}
}

func TestNestSurvivesCycles(t *testing.T) {
	flat := []Comment{
		{ID: "x", ParentID: "root"},
		{ID: "y", ParentID: "x"},
		{ID: "x", ParentID: "y"},
	}
	out, loose := nest(flat, []More{{ParentID: "gone", Token: "gone:z", Count: 1}})
	if len(loose) != 1 {
		t.Fatalf("loose = %#v, want 1", loose)
	}
	if len(out) == 0 {
		t.Fatalf("nest dropped every comment")
	}
}
