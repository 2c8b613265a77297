// Package recommendation selects the weekend day to schedule from feasibility
// results.
package recommendation

import "github.com/example/weekend-scheduler/internal/feasibility"

// Outcome classifies a recommendation.
type Outcome string

const (
	// OutcomeSaturday recommends Saturday.
	OutcomeSaturday Outcome = "saturday"
	// OutcomeSunday recommends Sunday.
	OutcomeSunday Outcome = "sunday"
	// OutcomeBoth reports both days viable with equal counts.
	OutcomeBoth Outcome = "both"
	// OutcomeNoConsensus reports that no day is viable yet.
	OutcomeNoConsensus Outcome = "no_consensus"
)

// Recommendation carries the outcome with the counts it was derived from.
type Recommendation struct {
	Outcome       Outcome
	Days          []feasibility.Day
	SaturdayCount int
	SundayCount   int
}

// HasWinner reports whether exactly one day was selected.
func (r Recommendation) HasWinner() bool {
	return r.Outcome == OutcomeSaturday || r.Outcome == OutcomeSunday
}

// Recommend applies the selection rule:
// one viable day wins; two viable days are decided by strictly higher count,
// with an exact tie reported as both; no viable day is no consensus.
func Recommend(saturday, sunday feasibility.DayResult) Recommendation {
	rec := Recommendation{SaturdayCount: saturday.Count, SundayCount: sunday.Count}

	switch {
	case saturday.Viable && sunday.Viable:
		switch {
		case saturday.Count > sunday.Count:
			rec.Outcome = OutcomeSaturday
			rec.Days = []feasibility.Day{feasibility.Saturday}
		case sunday.Count > saturday.Count:
			rec.Outcome = OutcomeSunday
			rec.Days = []feasibility.Day{feasibility.Sunday}
		default:
			rec.Outcome = OutcomeBoth
			rec.Days = []feasibility.Day{feasibility.Saturday, feasibility.Sunday}
		}
	case saturday.Viable:
		rec.Outcome = OutcomeSaturday
		rec.Days = []feasibility.Day{feasibility.Saturday}
	case sunday.Viable:
		rec.Outcome = OutcomeSunday
		rec.Days = []feasibility.Day{feasibility.Sunday}
	default:
		rec.Outcome = OutcomeNoConsensus
	}
	return rec
}

// FromResult is a convenience wrapper around Recommend.
func FromResult(result feasibility.Result) Recommendation {
	return Recommend(result.Saturday, result.Sunday)
}
