// Package timezone resolves IANA zone identifiers and localizes poll
// deadlines for participants.
package timezone

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "time/tzdata"
)

// ErrUnknownZone is the sentinel wrapped by UnknownZoneError.
var ErrUnknownZone = errors.New("timezone: unknown zone")

// UnknownZoneError reports an identifier that does not name a zone.
type UnknownZoneError struct {
	Zone string
}

func (e *UnknownZoneError) Error() string {
	return fmt.Sprintf("timezone: unknown zone %q", e.Zone)
}

func (e *UnknownZoneError) Unwrap() error {
	return ErrUnknownZone
}

// Resolver loads and caches zone locations.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]*time.Location
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]*time.Location)}
}

// Resolve returns the location for an IANA identifier such as
// "America/New_York". The empty string and "Local" are rejected so results
// never depend on the host configuration.
func (r *Resolver) Resolve(zone string) (*time.Location, error) {
	name := strings.TrimSpace(zone)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, &UnknownZoneError{Zone: zone}
	}

	if r != nil {
		r.mu.RLock()
		loc, ok := r.cache[name]
		r.mu.RUnlock()
		if ok {
			return loc, nil
		}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &UnknownZoneError{Zone: zone}
	}

	if r != nil {
		r.mu.Lock()
		if r.cache == nil {
			r.cache = make(map[string]*time.Location)
		}
		r.cache[name] = loc
		r.mu.Unlock()
	}
	return loc, nil
}

// Valid reports whether zone resolves.
func (r *Resolver) Valid(zone string) bool {
	_, err := r.Resolve(zone)
	return err == nil
}

// Convert reads the wall clock of instant as a time in fromZone and returns
// the same moment expressed in toZone.
func (r *Resolver) Convert(instant time.Time, fromZone, toZone string) (time.Time, error) {
	from, err := r.Resolve(fromZone)
	if err != nil {
		return time.Time{}, err
	}
	to, err := r.Resolve(toZone)
	if err != nil {
		return time.Time{}, err
	}

	y, mo, d := instant.Date()
	h, mi, s := instant.Clock()
	anchored := time.Date(y, mo, d, h, mi, s, instant.Nanosecond(), from)
	return anchored.In(to), nil
}

// Localize expresses an absolute instant in the given zone.
func (r *Resolver) Localize(instant time.Time, zone string) (time.Time, error) {
	loc, err := r.Resolve(zone)
	if err != nil {
		return time.Time{}, err
	}
	return instant.In(loc), nil
}

// Assignment pairs a participant with their preferred zone. An empty Zone
// means the participant has no preference.
type Assignment struct {
	ParticipantID string
	Zone          string
}

// ZoneGroup lists the participants that share a zone.
type ZoneGroup struct {
	Zone         string
	Participants []string
}

// GroupByZone buckets participants by zone. Participants without a
// preference are omitted. Groups are ordered by zone and participants keep
// their input order.
func GroupByZone(assignments []Assignment) []ZoneGroup {
	index := make(map[string]int)
	var groups []ZoneGroup
	for _, a := range assignments {
		zone := strings.TrimSpace(a.Zone)
		if zone == "" || a.ParticipantID == "" {
			continue
		}
		i, ok := index[zone]
		if !ok {
			i = len(groups)
			index[zone] = i
			groups = append(groups, ZoneGroup{Zone: zone})
		}
		groups[i].Participants = append(groups[i].Participants, a.ParticipantID)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Zone < groups[j].Zone })
	return groups
}
