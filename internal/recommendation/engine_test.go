package recommendation

import (
	"reflect"
	"testing"

	"github.com/example/weekend-scheduler/internal/feasibility"
)

func day(d feasibility.Day, count int, viable bool) feasibility.DayResult {
	return feasibility.DayResult{Day: d, Count: count, Viable: viable}
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		saturday feasibility.DayResult
		sunday   feasibility.DayResult
		outcome  Outcome
		days     []feasibility.Day
	}{
		{"only saturday viable", day(feasibility.Saturday, 3, true), day(feasibility.Sunday, 5, false), OutcomeSaturday, []feasibility.Day{feasibility.Saturday}},
		{"only sunday viable", day(feasibility.Saturday, 2, false), day(feasibility.Sunday, 3, true), OutcomeSunday, []feasibility.Day{feasibility.Sunday}},
		{"both viable saturday higher", day(feasibility.Saturday, 4, true), day(feasibility.Sunday, 3, true), OutcomeSaturday, []feasibility.Day{feasibility.Saturday}},
		{"both viable sunday higher", day(feasibility.Saturday, 3, true), day(feasibility.Sunday, 6, true), OutcomeSunday, []feasibility.Day{feasibility.Sunday}},
		{"both viable tie", day(feasibility.Saturday, 4, true), day(feasibility.Sunday, 4, true), OutcomeBoth, []feasibility.Day{feasibility.Saturday, feasibility.Sunday}},
		{"neither viable", day(feasibility.Saturday, 2, false), day(feasibility.Sunday, 1, false), OutcomeNoConsensus, nil},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Recommend(tc.saturday, tc.sunday)
			if got.Outcome != tc.outcome {
				t.Fatalf("expected outcome %s, got %s", tc.outcome, got.Outcome)
			}
			if !reflect.DeepEqual(got.Days, tc.days) {
				t.Fatalf("expected days %v, got %v", tc.days, got.Days)
			}
			if got.SaturdayCount != tc.saturday.Count || got.SundayCount != tc.sunday.Count {
				t.Fatalf("expected counts to be carried through, got %+v", got)
			}
		})
	}
}

func TestRecommendIsDeterministic(t *testing.T) {
	t.Parallel()

	sat := day(feasibility.Saturday, 4, true)
	sun := day(feasibility.Sunday, 4, true)
	first := Recommend(sat, sun)
	for i := 0; i < 50; i++ {
		if got := Recommend(sat, sun); !reflect.DeepEqual(got, first) {
			t.Fatalf("expected identical output, got %+v vs %+v", got, first)
		}
	}
	if first.HasWinner() {
		t.Fatalf("tie must not report a winner")
	}
}

func TestFromResultScenario(t *testing.T) {
	t.Parallel()

	roster := &feasibility.Roster{Members: []string{"A", "B", "C", "D", "E"}}
	result := feasibility.Evaluate([]feasibility.Response{
		{ParticipantID: "A", Saturday: true},
		{ParticipantID: "B", Saturday: true},
		{ParticipantID: "C", Sunday: true},
		{ParticipantID: "D", Saturday: true, Sunday: true},
		{ParticipantID: "E", Saturday: true, Sunday: true},
	}, roster, 3)

	rec := FromResult(result)
	if rec.Outcome != OutcomeSaturday || !rec.HasWinner() {
		t.Fatalf("expected saturday recommendation, got %+v", rec)
	}
}
