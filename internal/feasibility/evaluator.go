// Package feasibility decides whether each weekend day has enough available
// participants to be usable.
package feasibility

import "sort"

// Day identifies a candidate day.
type Day string

const (
	Saturday Day = "saturday"
	Sunday   Day = "sunday"
)

// Response is the subset of a poll response the evaluator needs.
type Response struct {
	ParticipantID string
	Label         string
	Saturday      bool
	Sunday        bool
}

// Roster is the expected participant set derived from a tracked role.
type Roster struct {
	Members []string
}

// DayResult summarises availability for one day.
type DayResult struct {
	Day          Day
	Count        int
	Participants []string
	Viable       bool
}

// Result is the evaluation outcome for a poll.
type Result struct {
	Saturday  DayResult
	Sunday    DayResult
	Threshold int
	Responses int

	// RosterTracked is set when a roster gated the evaluation.
	RosterTracked bool
	// AllResponded is true only in roster mode once every member answered.
	AllResponded bool
	// Pending lists roster members without a response, sorted.
	Pending []string
}

// Evaluate computes per-day counts and viability. A nil roster disables
// roster mode. Thresholds below one are treated as one.
func Evaluate(responses []Response, roster *Roster, threshold int) Result {
	if threshold < 1 {
		threshold = 1
	}

	result := Result{
		Saturday:  DayResult{Day: Saturday},
		Sunday:    DayResult{Day: Sunday},
		Threshold: threshold,
		Responses: len(responses),
	}

	responded := make(map[string]struct{}, len(responses))
	for _, r := range responses {
		responded[r.ParticipantID] = struct{}{}
		label := r.Label
		if label == "" {
			label = r.ParticipantID
		}
		if r.Saturday {
			result.Saturday.Count++
			result.Saturday.Participants = append(result.Saturday.Participants, label)
		}
		if r.Sunday {
			result.Sunday.Count++
			result.Sunday.Participants = append(result.Sunday.Participants, label)
		}
	}

	covered := true
	if roster != nil {
		result.RosterTracked = true
		seen := make(map[string]struct{}, len(roster.Members))
		for _, member := range roster.Members {
			if _, dup := seen[member]; dup {
				continue
			}
			seen[member] = struct{}{}
			if _, ok := responded[member]; !ok {
				result.Pending = append(result.Pending, member)
			}
		}
		sort.Strings(result.Pending)
		covered = len(result.Pending) == 0
		result.AllResponded = covered
	}

	result.Saturday.Viable = covered && result.Saturday.Count >= threshold
	result.Sunday.Viable = covered && result.Sunday.Count >= threshold
	return result
}

// Viable returns the viable days in Saturday, Sunday order.
func (r Result) Viable() []Day {
	var days []Day
	if r.Saturday.Viable {
		days = append(days, Saturday)
	}
	if r.Sunday.Viable {
		days = append(days, Sunday)
	}
	return days
}
