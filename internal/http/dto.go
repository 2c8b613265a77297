package http

import (
	"time"

	"github.com/example/weekend-scheduler/internal/application"
	"github.com/example/weekend-scheduler/internal/feasibility"
	"github.com/example/weekend-scheduler/internal/recurrence"
)

type pollDTO struct {
	ID          string     `json:"id"`
	GuildID     string     `json:"guild_id"`
	ChannelID   string     `json:"channel_id"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	Deadline    time.Time  `json:"deadline"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CloseReason string     `json:"close_reason,omitempty"`
}

func newPollDTO(p application.Poll) pollDTO {
	return pollDTO{
		ID:          p.ID,
		GuildID:     p.GuildID,
		ChannelID:   p.ChannelID,
		State:       string(p.State),
		CreatedAt:   p.CreatedAt,
		Deadline:    p.Deadline,
		ClosedAt:    p.ClosedAt,
		CloseReason: string(p.CloseReason),
	}
}

type responseDTO struct {
	ParticipantID    string    `json:"participant_id"`
	DisplayName      string    `json:"display_name"`
	Saturday         bool      `json:"saturday"`
	Sunday           bool      `json:"sunday"`
	FirstSubmittedAt time.Time `json:"first_submitted_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newResponseDTO(r application.Response) responseDTO {
	return responseDTO{
		ParticipantID:    r.ParticipantID,
		DisplayName:      r.DisplayName,
		Saturday:         r.Saturday,
		Sunday:           r.Sunday,
		FirstSubmittedAt: r.FirstSubmittedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func newResponseDTOs(responses []application.Response) []responseDTO {
	out := make([]responseDTO, len(responses))
	for i, r := range responses {
		out[i] = newResponseDTO(r)
	}
	return out
}

type dayDTO struct {
	Count        int      `json:"count"`
	Participants []string `json:"participants"`
	Viable       bool     `json:"viable"`
}

func newDayDTO(d feasibility.DayResult) dayDTO {
	participants := d.Participants
	if participants == nil {
		participants = []string{}
	}
	return dayDTO{Count: d.Count, Participants: participants, Viable: d.Viable}
}

type recommendationDTO struct {
	Outcome       string   `json:"outcome"`
	Days          []string `json:"days"`
	SaturdayCount int      `json:"saturday_count"`
	SundayCount   int      `json:"sunday_count"`
}

type zoneDeadlineDTO struct {
	Zone         string    `json:"zone"`
	Deadline     time.Time `json:"deadline"`
	Participants []string  `json:"participants"`
}

type statusDTO struct {
	Poll           pollDTO           `json:"poll"`
	Responses      []responseDTO     `json:"responses"`
	Saturday       dayDTO            `json:"saturday"`
	Sunday         dayDTO            `json:"sunday"`
	Threshold      int               `json:"threshold"`
	RosterTracked  bool              `json:"roster_tracked"`
	AllResponded   bool              `json:"all_responded"`
	Pending        []string          `json:"pending"`
	Recommendation recommendationDTO `json:"recommendation"`
	GuildZone      string            `json:"guild_zone"`
	GuildDeadline  time.Time         `json:"guild_deadline"`
	Deadlines      []zoneDeadlineDTO `json:"deadlines"`
}

func newStatusDTO(s application.PollStatus) statusDTO {
	days := make([]string, len(s.Recommendation.Days))
	for i, d := range s.Recommendation.Days {
		days[i] = string(d)
	}
	deadlines := make([]zoneDeadlineDTO, len(s.Deadlines))
	for i, d := range s.Deadlines {
		deadlines[i] = zoneDeadlineDTO{Zone: d.Zone, Deadline: d.Deadline, Participants: d.Participants}
	}
	pending := s.Pending()
	if pending == nil {
		pending = []string{}
	}
	return statusDTO{
		Poll:          newPollDTO(s.Poll),
		Responses:     newResponseDTOs(s.Responses),
		Saturday:      newDayDTO(s.Feasibility.Saturday),
		Sunday:        newDayDTO(s.Feasibility.Sunday),
		Threshold:     s.Feasibility.Threshold,
		RosterTracked: s.Feasibility.RosterTracked,
		AllResponded:  s.Feasibility.AllResponded,
		Pending:       pending,
		Recommendation: recommendationDTO{
			Outcome:       string(s.Recommendation.Outcome),
			Days:          days,
			SaturdayCount: s.Recommendation.SaturdayCount,
			SundayCount:   s.Recommendation.SundayCount,
		},
		GuildZone:     s.GuildZone,
		GuildDeadline: s.GuildDeadline,
		Deadlines:     deadlines,
	}
}

type summaryDTO struct {
	Reason string    `json:"reason"`
	Status statusDTO `json:"status"`
}

func newSummaryDTO(s application.PollSummary) summaryDTO {
	return summaryDTO{Reason: string(s.Reason), Status: newStatusDTO(s.Status)}
}

type configDTO struct {
	GuildID             string    `json:"guild_id"`
	SchedulingChannelID string    `json:"scheduling_channel_id"`
	PollDay             string    `json:"poll_day"`
	PollTime            string    `json:"poll_time"`
	DeadlineDay         string    `json:"deadline_day"`
	DeadlineTime        string    `json:"deadline_time"`
	ReminderIntervals   []string  `json:"reminder_intervals"`
	ReminderMode        string    `json:"reminder_mode"`
	MinParticipants     int       `json:"min_participants"`
	TrackedRoleID       string    `json:"tracked_role_id,omitempty"`
	DefaultTimezone     string    `json:"default_timezone"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func newConfigDTO(c application.GuildConfig) configDTO {
	intervals := make([]string, len(c.ReminderIntervals))
	for i, d := range c.ReminderIntervals {
		intervals[i] = d.String()
	}
	return configDTO{
		GuildID:             c.GuildID,
		SchedulingChannelID: c.SchedulingChannelID,
		PollDay:             recurrence.WeekdayName(c.PollDay),
		PollTime:            c.PollTime.String(),
		DeadlineDay:         recurrence.WeekdayName(c.DeadlineDay),
		DeadlineTime:        c.DeadlineTime.String(),
		ReminderIntervals:   intervals,
		ReminderMode:        string(c.ReminderMode),
		MinParticipants:     c.MinParticipants,
		TrackedRoleID:       c.TrackedRoleID,
		DefaultTimezone:     c.DefaultTimezone,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

type configPatchRequest struct {
	SchedulingChannelID *string  `json:"scheduling_channel_id"`
	PollDay             *string  `json:"poll_day"`
	PollTime            *string  `json:"poll_time"`
	DeadlineDay         *string  `json:"deadline_day"`
	DeadlineTime        *string  `json:"deadline_time"`
	ReminderIntervals   []string `json:"reminder_intervals"`
	ReminderMode        *string  `json:"reminder_mode"`
	MinParticipants     *int     `json:"min_participants"`
	TrackedRoleID       *string  `json:"tracked_role_id"`
	DefaultTimezone     *string  `json:"default_timezone"`
}

func (p configPatchRequest) toPatch() application.ConfigPatch {
	return application.ConfigPatch{
		SchedulingChannelID: p.SchedulingChannelID,
		PollDay:             p.PollDay,
		PollTime:            p.PollTime,
		DeadlineDay:         p.DeadlineDay,
		DeadlineTime:        p.DeadlineTime,
		ReminderIntervals:   p.ReminderIntervals,
		ReminderMode:        p.ReminderMode,
		MinParticipants:     p.MinParticipants,
		TrackedRoleID:       p.TrackedRoleID,
		DefaultTimezone:     p.DefaultTimezone,
	}
}

type channelRequest struct {
	ChannelID string `json:"channel_id"`
}

type purgeRequest struct {
	ChannelID string `json:"channel_id"`
	PollID    string `json:"poll_id"`
}

type purgeResponse struct {
	Closed int `json:"closed"`
}

type remindResponse struct {
	Sent int `json:"sent"`
}

type submitRequest struct {
	DisplayName string     `json:"display_name"`
	Saturday    bool       `json:"saturday"`
	Sunday      bool       `json:"sunday"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

type submitResponse struct {
	Response responseDTO `json:"response"`
	Applied  bool        `json:"applied"`
	Count    int         `json:"count"`
}

type timezoneRequest struct {
	Zone            string `json:"zone"`
	DirectReminders bool   `json:"direct_reminders"`
}

type timezoneDTO struct {
	GuildID         string    `json:"guild_id"`
	ParticipantID   string    `json:"participant_id"`
	Zone            string    `json:"zone"`
	DirectReminders bool      `json:"direct_reminders"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newTimezoneDTO(p application.TimezonePreference) timezoneDTO {
	return timezoneDTO{
		GuildID:         p.GuildID,
		ParticipantID:   p.ParticipantID,
		Zone:            p.Zone,
		DirectReminders: p.DirectReminders,
		UpdatedAt:       p.UpdatedAt,
	}
}
