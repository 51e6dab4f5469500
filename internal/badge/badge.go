package badge

import (
	"fmt"
	"sort"
	"strings"
)

// Award is one observed instance of a badge being awarded.
type Award struct {
	BadgeID   int    `json:"badge_id"`
	UserID    int    `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// Key identifies an award. The API exposes no per-award ID, so the
// (badge, user, time) triple is the stable identity.
type Key struct {
	BadgeID   int
	UserID    int
	Timestamp int64
}

func (a Award) Key() Key {
	return Key{BadgeID: a.BadgeID, UserID: a.UserID, Timestamp: a.Timestamp}
}

func (a Award) String() string {
	return fmt.Sprintf("badge %d user %d at %d", a.BadgeID, a.UserID, a.Timestamp)
}

// ElectionID extracts the election number from the award reason, which
// contains an "/election/N" path for election-related badges.
func (a Award) ElectionID() (int, bool) {
	_, rest, found := strings.Cut(a.Reason, "/election/")
	if !found {
		return 0, false
	}

	id := 0
	digits := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			break
		}
		id = id*10 + int(r-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	return id, true
}

// AwardSet is the deduplicated collection of all known awards for one badge.
// Awards are append-only: once observed, an award is never altered or removed.
type AwardSet struct {
	awards map[Key]Award
}

func NewSet() *AwardSet {
	return &AwardSet{awards: make(map[Key]Award)}
}

func NewSetOf(awards []Award) *AwardSet {
	s := NewSet()
	for _, a := range awards {
		s.Add(a)
	}
	return s
}

func (s *AwardSet) Len() int {
	return len(s.awards)
}

// Add records an award if its key is not already known. Reports whether the
// award was new.
func (s *AwardSet) Add(a Award) bool {
	k := a.Key()
	if _, ok := s.awards[k]; ok {
		return false
	}
	s.awards[k] = a
	return true
}

// Merge folds a batch of fetched awards into the set. Merging the same batch
// twice yields the same set as merging it once. A re-observed key whose
// payload differs from the stored award is kept as first observed and
// returned as a conflict for the caller to log.
func (s *AwardSet) Merge(in []Award) (added int, conflicts []Award) {
	for _, a := range in {
		k := a.Key()
		if existing, ok := s.awards[k]; ok {
			if existing != a {
				conflicts = append(conflicts, a)
			}
			continue
		}
		s.awards[k] = a
		added++
	}
	return added, conflicts
}

// Sorted returns all awards in chronological order.
func (s *AwardSet) Sorted() []Award {
	out := make([]Award, 0, len(s.awards))
	for _, a := range s.awards {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Cursor returns the timestamp of the most recent known award, or zero for an
// empty set. It bounds the next incremental fetch and is always derived from
// the set, never persisted separately.
func (s *AwardSet) Cursor() int64 {
	var max int64
	for _, a := range s.awards {
		if a.Timestamp > max {
			max = a.Timestamp
		}
	}
	return max
}

// ByElection groups awards by the election their reason names, in
// chronological order within each group. Awards without an election reason
// are omitted.
func (s *AwardSet) ByElection() map[int][]Award {
	out := make(map[int][]Award)
	for _, a := range s.Sorted() {
		id, ok := a.ElectionID()
		if !ok {
			continue
		}
		out[id] = append(out[id], a)
	}
	return out
}
