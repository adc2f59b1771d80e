package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"apptconfirm/internal/models"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	primaryCalendar    = "primary"
	defaultMaxUpcoming = 10
)

// CalendarClient reads appointments from a Google Calendar.
type CalendarClient struct {
	service     *calendar.Service
	logger      *slog.Logger
	calendarID  string
	location    *time.Location
	maxUpcoming int64
}

// NewCalendarClient creates a calendar reader authenticated with ts.
// Day filters are interpreted in loc.
func NewCalendarClient(ctx context.Context, logger *slog.Logger, ts oauth2.TokenSource, calendarID string, loc *time.Location) (*CalendarClient, error) {
	service, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return newCalendarClient(service, logger, calendarID, loc), nil
}

func newCalendarClient(service *calendar.Service, logger *slog.Logger, calendarID string, loc *time.Location) *CalendarClient {
	if calendarID == "" {
		calendarID = primaryCalendar
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarClient{
		service:     service,
		logger:      logger,
		calendarID:  calendarID,
		location:    loc,
		maxUpcoming: defaultMaxUpcoming,
	}
}

// Fetch returns the events of day, or the next upcoming events when day is nil.
// Results are ordered by start time.
func (c *CalendarClient) Fetch(ctx context.Context, day *time.Time) ([]models.Event, error) {
	call := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)

	if day != nil {
		dayStart, dayEnd := DayBounds(*day, c.location)
		c.logger.Info("Getting events for day", "date", dayStart.Format("2006-01-02"), "timezone", c.location.String())
		call = call.TimeMin(dayStart.UTC().Format(time.RFC3339)).TimeMax(dayEnd.UTC().Format(time.RFC3339))
	} else {
		c.logger.Info("Getting upcoming events", "max", c.maxUpcoming)
		call = call.TimeMin(time.Now().UTC().Format(time.RFC3339)).MaxResults(c.maxUpcoming)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Debug("Fetched events from Google Calendar", "count", len(events.Items), "calendarID", c.calendarID)
	return toInternalEvents(events.Items), nil
}

// DayBounds returns the first and last instant of the calendar day of t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func toInternalEvents(items []*calendar.Event) []models.Event {
	internal := make([]models.Event, 0, len(items))
	for _, item := range items {
		if item.Start == nil {
			continue
		}

		var attendees []models.Attendee
		for _, a := range item.Attendees {
			attendees = append(attendees, models.Attendee{Email: a.Email})
		}

		ev := models.Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Start:       toTimePoint(item.Start),
			End:         toTimePoint(item.End),
			Attendees:   attendees,
			Source:      "google",
		}
		internal = append(internal, ev)
	}
	return internal
}

func toTimePoint(dt *calendar.EventDateTime) models.TimePoint {
	if dt == nil {
		return models.TimePoint{}
	}
	return models.TimePoint{DateTime: dt.DateTime, Date: dt.Date}
}
