package report

import (
	"sort"

	"go.uber.org/zap"

	"github.com/stackwatch/election-observer/internal/badge"
)

const (
	hourSeconds = 60 * 60

	// Some badges are awarded long after voting ends, so the window cannot
	// be read off the data. Elections are charted over a fixed 15 days from
	// the first caucus award.
	electionWindowSeconds = 15 * 24 * hourSeconds
)

// Election holds one election's awards bucketed into hours from the start of
// its caucus phase.
type Election struct {
	Site string
	ID   int

	Start int64 // first caucus award, or first constituent award if no caucus

	ConstituentsByHour []int
	CaucusByHour       []int

	// firstConstituentHour is the first bucket with a constituent award;
	// the constituents-only chart starts there.
	firstConstituentHour int
}

// BuildElections joins constituent and caucus awards by election and buckets
// them. Awards outside the election window are dropped with a debug log, as
// are awards whose reason names no election.
func BuildElections(site string, constituents, caucus *badge.AwardSet, logger *zap.Logger) []*Election {
	constituentsByID := constituents.ByElection()
	caucusByID := caucus.ByElection()

	ids := make(map[int]bool)
	for id := range constituentsByID {
		ids[id] = true
	}
	for id := range caucusByID {
		ids[id] = true
	}

	out := make([]*Election, 0, len(ids))
	for id := range ids {
		e := buildElection(site, id, constituentsByID[id], caucusByID[id], logger)
		if e != nil {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func buildElection(site string, id int, constituents, caucus []badge.Award, logger *zap.Logger) *Election {
	if len(constituents) == 0 && len(caucus) == 0 {
		return nil
	}

	e := &Election{Site: site, ID: id}

	if len(caucus) > 0 {
		e.Start = caucus[0].Timestamp
	} else {
		e.Start = constituents[0].Timestamp
	}

	hours := 1 + electionWindowSeconds/hourSeconds
	e.ConstituentsByHour = make([]int, hours)
	e.CaucusByHour = make([]int, hours)
	e.firstConstituentHour = hours

	for _, a := range constituents {
		h := int((a.Timestamp - e.Start) / hourSeconds)
		if h < 0 || h >= hours {
			logger.Debug("ignoring out-of-window constituent award",
				zap.Int("election", id), zap.Int64("timestamp", a.Timestamp))
			continue
		}
		if h < e.firstConstituentHour {
			e.firstConstituentHour = h
		}
		e.ConstituentsByHour[h]++
	}

	for _, a := range caucus {
		h := int((a.Timestamp - e.Start) / hourSeconds)
		if h < 0 || h >= hours {
			logger.Debug("ignoring out-of-window caucus award",
				zap.Int("election", id), zap.Int64("timestamp", a.Timestamp))
			continue
		}
		e.CaucusByHour[h]++
	}

	return e
}

// Cumulative returns the running totals of hourly counts.
func Cumulative(xs []int) []float64 {
	out := make([]float64, len(xs))
	n := 0
	for i, x := range xs {
		n += x
		out[i] = float64(n)
	}
	return out
}
