package icloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"apptconfirm/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

const (
	// DefaultEndpoint is the iCloud CalDAV root; any CalDAV server works.
	DefaultEndpoint = "https://caldav.icloud.com/"

	defaultMaxUpcoming = 10
	upcomingWindow     = 30 * 24 * time.Hour
	dateLayout         = "2006-01-02"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "apptconfirm/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVClient reads appointments from a CalDAV calendar (iCloud by default).
type CalDAVClient struct {
	caldavClient *caldav.Client
	logger       *slog.Logger
	calendarPath string
	location     *time.Location
	maxUpcoming  int
}

// NewClient connects to endpoint and locates the calendar named calendarName.
// Event times are rendered in loc.
func NewClient(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string, loc *time.Location) (*CalDAVClient, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if loc == nil {
		loc = time.UTC
	}
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &CalDAVClient{
		caldavClient: caldavClient,
		logger:       logger,
		location:     loc,
		maxUpcoming:  defaultMaxUpcoming,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", calendarName)
	calendarPath, err := c.findCalendar(ctx, calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	c.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return c, nil
}

// Fetch returns the events of day, or the next upcoming events when day is nil.
// Results are ordered by start time.
func (c *CalDAVClient) Fetch(ctx context.Context, day *time.Time) ([]models.Event, error) {
	var start, end time.Time
	limit := 0
	if day != nil {
		y, m, d := day.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, c.location)
		end = start.AddDate(0, 0, 1)
		c.logger.Info("Getting events for day", "date", start.Format(dateLayout), "timezone", c.location.String())
	} else {
		start = time.Now()
		end = start.Add(upcomingWindow)
		limit = c.maxUpcoming
		c.logger.Info("Getting upcoming events", "max", limit)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent, Start: start.UTC(), End: end.UTC()}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	events := toInternalEvents(c.logger, objects, c.location, window{start: start, end: end})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	c.logger.Debug("Fetched events from CalDAV", "count", len(events))
	return events, nil
}

type datedEvent struct {
	event models.Event
	start time.Time
}

// window is the queried range; recurring events are expanded inside it.
type window struct {
	start, end time.Time
}

func (w window) overlaps(start, end time.Time) bool {
	if !end.After(start) {
		return !start.Before(w.start) && start.Before(w.end)
	}
	return start.Before(w.end) && end.After(w.start)
}

// toInternalEvents converts the VEVENTs of the returned objects, sorted by
// start. Recurring events yield one Event per occurrence in w, and a child
// carrying a RECURRENCE-ID replaces the occurrence it overrides.
func toInternalEvents(logger *slog.Logger, objects []caldav.CalendarObject, loc *time.Location, w window) []models.Event {
	var dated []datedEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}

		var comps, overrides []*ical.Component
		overridden := make(map[string]bool)
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			if comp.Props.Get(ical.PropRecurrenceID) == nil {
				comps = append(comps, comp)
				continue
			}
			rid, err := comp.Props.DateTime(ical.PropRecurrenceID, loc)
			if err != nil {
				logger.Warn("Skipping CalDAV override with bad RECURRENCE-ID", "path", obj.Path, "error", err)
				continue
			}
			overridden[occurrenceID(textProp(comp, ical.PropUID), rid)] = true
			overrides = append(overrides, comp)
		}

		for _, comp := range comps {
			evs, err := expand(comp, loc, w, overridden)
			if err != nil {
				logger.Warn("Skipping unreadable CalDAV event", "path", obj.Path, "error", err)
				continue
			}
			dated = append(dated, evs...)
		}

		for _, comp := range overrides {
			ev, start, end, err := fromICal(comp, loc)
			if err != nil {
				logger.Warn("Skipping unreadable CalDAV event", "path", obj.Path, "error", err)
				continue
			}
			if !w.overlaps(start, end) {
				continue
			}
			rid, _ := comp.Props.DateTime(ical.PropRecurrenceID, loc)
			ev.ID = occurrenceID(ev.ID, rid)
			dated = append(dated, datedEvent{event: ev, start: start})
		}
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].start.Before(dated[j].start)
	})

	events := make([]models.Event, 0, len(dated))
	for _, d := range dated {
		events = append(events, d.event)
	}
	return events
}

// expand returns comp itself when it does not recur, else its occurrences in
// w minus those listed in overridden.
func expand(comp *ical.Component, loc *time.Location, w window, overridden map[string]bool) ([]datedEvent, error) {
	base, start, end, err := fromICal(comp, loc)
	if err != nil {
		return nil, err
	}

	set, err := comp.RecurrenceSet(loc)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return []datedEvent{{event: base, start: start}}, nil
	}

	dur := end.Sub(start)
	allDay := base.Start.Date != ""
	var out []datedEvent
	for _, occ := range set.Between(w.start.Add(-dur), w.end, true) {
		occEnd := occ.Add(dur)
		if !w.overlaps(occ, occEnd) {
			continue
		}
		id := occurrenceID(base.ID, occ)
		if overridden[id] {
			continue
		}
		ev := base
		ev.ID = id
		setTimes(&ev, occ, occEnd, allDay, loc)
		out = append(out, datedEvent{event: ev, start: occ})
	}
	return out, nil
}

// occurrenceID identifies one instance of a recurring event.
func occurrenceID(uid string, start time.Time) string {
	return uid + "@" + start.UTC().Format("20060102T150405Z")
}

// fromICal converts a VEVENT component to the internal Event model.
func fromICal(comp *ical.Component, loc *time.Location) (models.Event, time.Time, time.Time, error) {
	ve := ical.Event{Component: comp}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return models.Event{}, time.Time{}, time.Time{}, fmt.Errorf("event has no DTSTART")
	}
	start, err := ve.DateTimeStart(loc)
	if err != nil {
		return models.Event{}, time.Time{}, time.Time{}, fmt.Errorf("failed to parse DTSTART: %w", err)
	}
	end, err := ve.DateTimeEnd(loc)
	if err != nil || end.IsZero() {
		end = start
	}

	ev := models.Event{
		ID:          textProp(comp, ical.PropUID),
		Summary:     textProp(comp, ical.PropSummary),
		Description: textProp(comp, ical.PropDescription),
		Source:      "caldav",
	}

	allDay := startProp.ValueType() == ical.ValueDate
	if allDay && !end.After(start) {
		end = start.AddDate(0, 0, 1)
	}
	setTimes(&ev, start, end, allDay, loc)

	for _, p := range comp.Props.Values(ical.PropAttendee) {
		if email := mailtoAddress(p.Value); email != "" {
			ev.Attendees = append(ev.Attendees, models.Attendee{Email: email})
		}
	}

	return ev, start, end, nil
}

func setTimes(ev *models.Event, start, end time.Time, allDay bool, loc *time.Location) {
	if allDay {
		ev.Start = models.TimePoint{Date: start.Format(dateLayout)}
		ev.End = models.TimePoint{Date: end.Format(dateLayout)}
		return
	}
	ev.Start = models.TimePoint{DateTime: start.In(loc).Format(time.RFC3339)}
	ev.End = models.TimePoint{DateTime: end.In(loc).Format(time.RFC3339)}
}

func textProp(comp *ical.Component, name string) string {
	v, err := comp.Props.Text(name)
	if err != nil {
		return ""
	}
	return v
}

func mailtoAddress(v string) string {
	if len(v) >= len("mailto:") && strings.EqualFold(v[:len("mailto:")], "mailto:") {
		v = v[len("mailto:"):]
	}
	return strings.TrimSpace(v)
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *CalDAVClient) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
