package badge

import (
	"testing"
)

func TestElectionID(t *testing.T) {
	cases := []struct {
		reason string
		id     int
		ok     bool
	}{
		{`voted in an <a href="/election/7">election</a>`, 7, true},
		{"/election/12", 12, true},
		{"/election/", 0, false},
		{"first moderator election", 0, false},
		{"", 0, false},
	}

	for _, c := range cases {
		a := Award{Reason: c.reason}
		id, ok := a.ElectionID()
		if id != c.id || ok != c.ok {
			t.Errorf("ElectionID(%q) = %d, %v; want %d, %v", c.reason, id, ok, c.id, c.ok)
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	batch := []Award{
		{BadgeID: 1974, UserID: 1, Timestamp: 100},
		{BadgeID: 1974, UserID: 2, Timestamp: 150},
	}

	s := NewSet()
	added, conflicts := s.Merge(batch)
	if added != 2 || len(conflicts) != 0 {
		t.Fatalf("first merge: added=%d conflicts=%d", added, len(conflicts))
	}

	added, conflicts = s.Merge(batch)
	if added != 0 || len(conflicts) != 0 {
		t.Fatalf("second merge: added=%d conflicts=%d", added, len(conflicts))
	}

	if s.Len() != 2 {
		t.Fatalf("expected 2 awards, got %d", s.Len())
	}
}

func TestMergeConflictKeepsFirstObservation(t *testing.T) {
	s := NewSet()
	original := Award{BadgeID: 1974, UserID: 1, Timestamp: 100, Reason: "/election/7"}
	s.Add(original)

	changed := original
	changed.Reason = "/election/8"

	added, conflicts := s.Merge([]Award{changed})
	if added != 0 {
		t.Errorf("conflicting award should not be added, added=%d", added)
	}
	if len(conflicts) != 1 || conflicts[0] != changed {
		t.Fatalf("expected the differing re-observation as conflict, got %v", conflicts)
	}

	got := s.Sorted()[0]
	if got != original {
		t.Errorf("stored award was overwritten: %v", got)
	}
}

func TestSortedChronological(t *testing.T) {
	s := NewSetOf([]Award{
		{BadgeID: 1, UserID: 3, Timestamp: 300},
		{BadgeID: 1, UserID: 1, Timestamp: 100},
		{BadgeID: 1, UserID: 2, Timestamp: 200},
	})

	sorted := s.Sorted()
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Timestamp > sorted[i].Timestamp {
			t.Fatalf("not chronological: %v", sorted)
		}
	}
}

func TestCursor(t *testing.T) {
	s := NewSet()
	if s.Cursor() != 0 {
		t.Errorf("empty set cursor = %d, want 0", s.Cursor())
	}

	s.Add(Award{BadgeID: 1, UserID: 1, Timestamp: 100})
	s.Add(Award{BadgeID: 1, UserID: 2, Timestamp: 150})
	if s.Cursor() != 150 {
		t.Errorf("cursor = %d, want 150", s.Cursor())
	}
}

func TestByElection(t *testing.T) {
	s := NewSetOf([]Award{
		{BadgeID: 1974, UserID: 1, Timestamp: 100, Reason: "/election/5"},
		{BadgeID: 1974, UserID: 2, Timestamp: 200, Reason: "/election/5"},
		{BadgeID: 1974, UserID: 3, Timestamp: 300, Reason: "/election/6"},
		{BadgeID: 3109, UserID: 4, Timestamp: 400},
	})

	groups := s.ByElection()
	if len(groups) != 2 {
		t.Fatalf("expected 2 elections, got %d", len(groups))
	}
	if len(groups[5]) != 2 || len(groups[6]) != 1 {
		t.Errorf("unexpected grouping: %v", groups)
	}
	if groups[5][0].Timestamp != 100 {
		t.Errorf("group not chronological: %v", groups[5])
	}
}
