package delivery

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/weekend-scheduler/internal/application"
	"github.com/example/weekend-scheduler/internal/feasibility"
	"github.com/example/weekend-scheduler/internal/recommendation"
)

const deadlineLayout = "Mon Jan 2 15:04 MST"

// RenderPollCreated announces a new poll with its deadline in every zone in
// use.
func RenderPollCreated(status application.PollStatus) Message {
	var b strings.Builder
	b.WriteString("Weekend availability poll\n")
	b.WriteString("Are you free on Saturday, Sunday, or both? Answer before the deadline.\n")
	writeDeadlines(&b, status)
	return Message{
		Kind:      KindPollCreated,
		PollID:    status.Poll.ID,
		GuildID:   status.Poll.GuildID,
		ChannelID: status.Poll.ChannelID,
		Text:      b.String(),
	}
}

// RenderPollUpdated reports the running tally.
func RenderPollUpdated(status application.PollStatus) Message {
	var b strings.Builder
	writeTally(&b, status.Feasibility)
	if pending := status.Pending(); len(pending) > 0 {
		fmt.Fprintf(&b, "Still waiting on %d: %s\n", len(pending), mentions(pending))
	}
	b.WriteString(describe(status.Recommendation))
	b.WriteString("\n")
	return Message{
		Kind:      KindPollUpdated,
		PollID:    status.Poll.ID,
		GuildID:   status.Poll.GuildID,
		ChannelID: status.Poll.ChannelID,
		Text:      b.String(),
	}
}

// RenderPollClosed is the final summary.
func RenderPollClosed(summary application.PollSummary) Message {
	status := summary.Status
	var b strings.Builder
	switch summary.Reason {
	case application.CloseReasonDeadline:
		b.WriteString("The poll closed at its deadline.\n")
	default:
		b.WriteString("The poll was closed.\n")
	}
	writeTally(&b, status.Feasibility)
	b.WriteString(describe(status.Recommendation))
	b.WriteString("\n")
	return Message{
		Kind:      KindPollClosed,
		PollID:    status.Poll.ID,
		GuildID:   status.Poll.GuildID,
		ChannelID: status.Poll.ChannelID,
		Text:      b.String(),
		DedupKey:  "closed:" + status.Poll.ID,
	}
}

// RenderReminder addresses a reminder intent. Channel mode reminders mention
// the participant in the poll channel; direct mode sends a direct message.
func RenderReminder(intent application.ReminderIntent) Message {
	deadline := intent.Deadline
	if intent.LocalizedDeadline != nil {
		deadline = *intent.LocalizedDeadline
	}

	msg := Message{
		Kind:      KindReminder,
		PollID:    intent.PollID,
		GuildID:   intent.GuildID,
		ChannelID: intent.ChannelID,
	}
	switch {
	case intent.Broadcast():
		msg.Text = fmt.Sprintf("Reminder: the weekend poll closes %s. Please answer if you have not yet.", formatDeadline(deadline))
	case intent.Mode == application.ReminderModeDirect:
		msg.RecipientID = intent.ParticipantID
		msg.Text = fmt.Sprintf("Reminder: the weekend poll closes %s. Let us know if you can make Saturday or Sunday.", formatDeadline(deadline))
	default:
		msg.Text = fmt.Sprintf("<@%s> the weekend poll closes %s. Please answer.", intent.ParticipantID, formatDeadline(deadline))
	}
	if !intent.Manual && intent.IntervalIndex >= 0 {
		msg.DedupKey = fmt.Sprintf("reminder:%s:%s:%d", intent.PollID, intent.ParticipantID, intent.IntervalIndex)
	}
	return msg
}

func writeDeadlines(b *strings.Builder, status application.PollStatus) {
	fmt.Fprintf(b, "Deadline: %s\n", formatDeadline(status.GuildDeadline))
	for _, zone := range status.Deadlines {
		if zone.Zone == status.GuildZone {
			continue
		}
		fmt.Fprintf(b, "  %s (%s): %s\n", formatDeadline(zone.Deadline), zone.Zone, mentions(zone.Participants))
	}
}

func writeTally(b *strings.Builder, result feasibility.Result) {
	writeDay(b, "Saturday", result.Saturday, result.Threshold)
	writeDay(b, "Sunday", result.Sunday, result.Threshold)
}

func writeDay(b *strings.Builder, name string, day feasibility.DayResult, threshold int) {
	fmt.Fprintf(b, "%s: %d/%d", name, day.Count, threshold)
	if len(day.Participants) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(day.Participants, ", "))
	}
	if day.Viable {
		b.WriteString(" (viable)")
	}
	b.WriteString("\n")
}

func describe(rec recommendation.Recommendation) string {
	switch rec.Outcome {
	case recommendation.OutcomeSaturday:
		return "Recommendation: Saturday"
	case recommendation.OutcomeSunday:
		return "Recommendation: Sunday"
	case recommendation.OutcomeBoth:
		return fmt.Sprintf("Both days work equally well (%d each), no clear winner", rec.SaturdayCount)
	default:
		return fmt.Sprintf("No consensus yet (Saturday %d, Sunday %d)", rec.SaturdayCount, rec.SundayCount)
	}
}

func mentions(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "<@" + id + ">"
	}
	return strings.Join(out, " ")
}

func formatDeadline(t time.Time) string {
	return t.Format(deadlineLayout)
}
