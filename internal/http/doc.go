// Package http provides the JSON API used by the chat command layer and by
// operators.
//
// The router exposes the following endpoints:
//   - POST /guilds/{guild}/init: creates or re-points the guild config. Body:
//     {"channel_id"}.
//   - GET /guilds/{guild}/config, PATCH /guilds/{guild}/config: read or patch
//     the `configDTO` defined in dto.go. Omitted patch fields are unchanged and
//     an empty "reminder_intervals" list disables reminders.
//   - POST /guilds/{guild}/polls: opens a poll. Body: {"channel_id"}, optional
//     when the guild has a scheduling channel.
//   - GET, PUT, DELETE /guilds/{guild}/timezones/{participant}: participant
//     timezone preference. Body for PUT: {"zone","direct_reminders"}.
//   - GET /channels/{channel}/poll and POST /channels/{channel}/poll/close: the
//     channel's open poll.
//   - POST /polls/purge: force closes open polls. Body: {"channel_id","poll_id"};
//     an empty body purges every channel.
//   - GET /polls/{poll}, POST /polls/{poll}/close, POST /polls/{poll}/remind.
//   - GET /polls/{poll}/responses, PUT and DELETE
//     /polls/{poll}/responses/{participant}. Body for PUT:
//     {"display_name","saturday","sunday","submitted_at"}.
//   - GET /healthz: pings the store.
//
// Errors are returned as {"error_code","message","errors"}. Request/response
// DTOs live in dto.go so tests and documentation share the same ground truth.
package http
