package icloud

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"apptconfirm/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func timedEvent(uid, summary string, start, end time.Time, attendees ...string) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, end)
	for _, a := range attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + a)
		ve.Props.Add(p)
	}
	return ve
}

func allDayEvent(uid, summary string, day time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetText(ical.PropSummary, summary)
	ve.Props.SetDate(ical.PropDateTimeStart, day)
	return ve
}

func dayWindow(y int, m time.Month, d int, loc *time.Location) window {
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return window{start: start, end: start.AddDate(0, 0, 1)}
}

func weekly(ve *ical.Component) *ical.Component {
	p := ical.NewProp(ical.PropRecurrenceRule)
	p.Value = "FREQ=WEEKLY"
	ve.Props.Set(p)
	return ve
}

func object(children ...*ical.Component) caldav.CalendarObject {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//apptconfirm//EN")
	cal.Children = append(cal.Children, children...)
	return caldav.CalendarObject{Path: "/cal/obj.ics", Data: cal}
}

func TestToInternalEvents(t *testing.T) {
	loc := newYork(t)
	later := timedEvent("uid-2", "AP Physics",
		time.Date(2025, 12, 6, 22, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 6, 23, 0, 0, 0, time.UTC))
	earlier := timedEvent("uid-1", "SAT Math",
		time.Date(2025, 12, 6, 20, 30, 0, 0, time.UTC),
		time.Date(2025, 12, 6, 22, 0, 0, 0, time.UTC),
		"mina@example.com")

	events := toInternalEvents(discardLogger(), []caldav.CalendarObject{object(later), object(earlier)}, loc, dayWindow(2025, 12, 6, loc))

	require.Len(t, events, 2)
	assert.Equal(t, models.Event{
		ID:        "uid-1",
		Summary:   "SAT Math",
		Start:     models.TimePoint{DateTime: "2025-12-06T15:30:00-05:00"},
		End:       models.TimePoint{DateTime: "2025-12-06T17:00:00-05:00"},
		Attendees: []models.Attendee{{Email: "mina@example.com"}},
		Source:    "caldav",
	}, events[0])
	assert.Equal(t, "uid-2", events[1].ID)
}

func TestToInternalEvents_AllDay(t *testing.T) {
	loc := newYork(t)
	day := time.Date(2025, 12, 6, 0, 0, 0, 0, loc)

	events := toInternalEvents(discardLogger(), []caldav.CalendarObject{object(allDayEvent("uid-3", "Holiday", day))}, loc, dayWindow(2025, 12, 6, loc))

	require.Len(t, events, 1)
	assert.Equal(t, models.TimePoint{Date: "2025-12-06"}, events[0].Start)
	assert.Equal(t, models.TimePoint{Date: "2025-12-07"}, events[0].End)
}

func TestToInternalEvents_SkipsEventsWithoutStart(t *testing.T) {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, "broken")
	todo := ical.NewComponent(ical.CompToDo)

	events := toInternalEvents(discardLogger(), []caldav.CalendarObject{object(ve, todo), {Path: "/empty"}}, time.UTC, dayWindow(2025, 12, 6, time.UTC))
	assert.Empty(t, events)
}

func TestToInternalEvents_ExpandsWeeklyEvent(t *testing.T) {
	loc := newYork(t)
	master := weekly(timedEvent("weekly", "SAT Math",
		time.Date(2025, 1, 3, 15, 30, 0, 0, loc),
		time.Date(2025, 1, 3, 17, 0, 0, 0, loc),
		"mina@example.com"))

	events := toInternalEvents(discardLogger(), []caldav.CalendarObject{object(master)}, loc, dayWindow(2025, 12, 5, loc))

	require.Len(t, events, 1)
	assert.Equal(t, "weekly@20251205T203000Z", events[0].ID)
	assert.Equal(t, "SAT Math", events[0].Summary)
	assert.Equal(t, models.TimePoint{DateTime: "2025-12-05T15:30:00-05:00"}, events[0].Start)
	assert.Equal(t, models.TimePoint{DateTime: "2025-12-05T17:00:00-05:00"}, events[0].End)
	assert.Equal(t, []models.Attendee{{Email: "mina@example.com"}}, events[0].Attendees)

	// No occurrence falls on a Saturday.
	events = toInternalEvents(discardLogger(), []caldav.CalendarObject{object(master)}, loc, dayWindow(2025, 12, 6, loc))
	assert.Empty(t, events)
}

func TestToInternalEvents_OverrideReplacesOccurrence(t *testing.T) {
	loc := newYork(t)
	master := weekly(timedEvent("weekly", "SAT Math",
		time.Date(2025, 1, 3, 15, 30, 0, 0, loc),
		time.Date(2025, 1, 3, 17, 0, 0, 0, loc)))
	moved := timedEvent("weekly", "SAT Math (moved)",
		time.Date(2025, 12, 5, 18, 0, 0, 0, loc),
		time.Date(2025, 12, 5, 19, 30, 0, 0, loc))
	moved.Props.SetDateTime(ical.PropRecurrenceID, time.Date(2025, 12, 5, 15, 30, 0, 0, loc))

	events := toInternalEvents(discardLogger(), []caldav.CalendarObject{object(master, moved)}, loc, dayWindow(2025, 12, 5, loc))

	require.Len(t, events, 1)
	assert.Equal(t, "SAT Math (moved)", events[0].Summary)
	assert.Equal(t, "weekly@20251205T203000Z", events[0].ID)
	assert.Equal(t, models.TimePoint{DateTime: "2025-12-05T18:00:00-05:00"}, events[0].Start)
}

func TestToInternalEvents_UpcomingWindowExpandsSeveral(t *testing.T) {
	loc := newYork(t)
	master := weekly(timedEvent("weekly", "SAT Math",
		time.Date(2025, 1, 3, 15, 30, 0, 0, loc),
		time.Date(2025, 1, 3, 17, 0, 0, 0, loc)))
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, loc)

	events := toInternalEvents(discardLogger(), []caldav.CalendarObject{object(master)}, loc, window{start: start, end: start.AddDate(0, 0, 14)})

	require.Len(t, events, 2)
	assert.Equal(t, "2025-12-05T15:30:00-05:00", events[0].Start.DateTime)
	assert.Equal(t, "2025-12-12T15:30:00-05:00", events[1].Start.DateTime)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestMailtoAddress(t *testing.T) {
	assert.Equal(t, "a@example.com", mailtoAddress("mailto:a@example.com"))
	assert.Equal(t, "b@example.com", mailtoAddress("MAILTO:b@example.com"))
	assert.Equal(t, "c@example.com", mailtoAddress("c@example.com"))
	assert.Equal(t, "", mailtoAddress("mailto:"))
}
