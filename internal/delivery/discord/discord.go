// Package discord delivers messages through the Discord REST API and
// resolves tracked-role rosters from guild membership.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/example/weekend-scheduler/internal/application"
	"github.com/example/weekend-scheduler/internal/delivery"
)

// memberPageSize is the largest page the members endpoint returns.
const memberPageSize = 1000

// Session is the subset of *discordgo.Session used here.
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
}

var _ Session = (*discordgo.Session)(nil)

// NewSession creates a bot session for REST calls. No gateway connection is
// opened.
func NewSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("discord: token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	return session, nil
}

// Transport sends rendered messages to channels or as direct messages.
type Transport struct {
	session Session
}

var _ delivery.Transport = (*Transport)(nil)

// NewTransport wraps a session.
func NewTransport(session Session) *Transport {
	return &Transport{session: session}
}

// Send posts msg. Direct messages open (or reuse) the DM channel first.
func (t *Transport) Send(ctx context.Context, msg delivery.Message) error {
	channelID := msg.ChannelID
	if msg.Direct() {
		dm, err := t.session.UserChannelCreate(msg.RecipientID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord: open direct channel for %s: %w", msg.RecipientID, err)
		}
		channelID = dm.ID
	}
	if channelID == "" {
		return errors.New("discord: message has no channel")
	}
	if _, err := t.session.ChannelMessageSend(channelID, msg.Text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return nil
}

// RosterResolver lists the non-bot members holding a role.
type RosterResolver struct {
	session Session
}

var _ application.RosterResolver = (*RosterResolver)(nil)

// NewRosterResolver wraps a session.
func NewRosterResolver(session Session) *RosterResolver {
	return &RosterResolver{session: session}
}

// ResolveRoster pages through the guild members and returns the user ids
// that carry roleID, sorted.
func (r *RosterResolver) ResolveRoster(ctx context.Context, guildID, roleID string) ([]string, error) {
	var (
		members []string
		after   string
	)
	for {
		page, err := r.session.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("discord: list members of %s: %w", guildID, err)
		}
		for _, m := range page {
			if m == nil || m.User == nil || m.User.Bot {
				continue
			}
			if hasRole(m.Roles, roleID) {
				members = append(members, m.User.ID)
			}
		}
		if len(page) < memberPageSize {
			break
		}
		last := page[len(page)-1]
		if last == nil || last.User == nil {
			break
		}
		after = last.User.ID
	}
	sort.Strings(members)
	return members, nil
}

func hasRole(roles []string, roleID string) bool {
	for _, r := range roles {
		if r == roleID {
			return true
		}
	}
	return false
}
