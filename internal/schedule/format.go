package schedule

import (
	"fmt"
	"strings"
	"time"

	"apptconfirm/internal/models"
)

const (
	// AllDay is the time rendering for events without a time of day.
	AllDay = "All Day"

	participantDateLayout = "January, 02, 2006"
	providerDateLayout    = "01. 02, 2006"
	clockLayout           = "3:04PM"
	labelClockLayout      = "03:04PM"
)

// instantLayouts are tried in order. RFC 3339 keeps the event's own offset.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Format renders a start/end pair for the given recipient role.
// A raw value without a time of day is treated as an all-day date and passed
// through unmodified. Values that fail to parse are returned raw in both fields.
func Format(start, end string, style models.Role) models.FormattedSchedule {
	fallback := models.FormattedSchedule{Date: start, Time: start}

	if !hasClock(start) {
		return models.FormattedSchedule{Date: start, Time: AllDay}
	}

	s, err := parseInstant(start)
	if err != nil {
		return fallback
	}
	e, err := parseInstant(end)
	if err != nil {
		return fallback
	}

	return models.FormattedSchedule{
		Date: formatDate(s, style),
		Time: clock(s) + " - " + clock(e),
	}
}

// FormatEvent is Format applied to an event's start and end.
func FormatEvent(ev models.Event, style models.Role) models.FormattedSchedule {
	return Format(ev.Start.Raw(), ev.End.Raw(), style)
}

// Label renders the short description shown next to an event in a picker,
// e.g. "03:30PM - 05:00PM" or "2025-12-06 (All Day)".
func Label(ev models.Event) string {
	start, end := ev.Start.Raw(), ev.End.Raw()
	if !hasClock(start) {
		return fmt.Sprintf("%s (All Day)", start)
	}
	s, err := parseInstant(start)
	if err != nil {
		return start
	}
	e, err := parseInstant(end)
	if err != nil {
		return start
	}
	return s.Format(labelClockLayout) + " - " + e.Format(labelClockLayout)
}

func formatDate(t time.Time, style models.Role) string {
	if style == models.RoleProvider {
		return t.Format(providerDateLayout)
	}
	return t.Format(participantDateLayout)
}

// clock renders "3:30pm". The "3" layout element never pads the hour.
func clock(t time.Time) string {
	return strings.ToLower(t.Format(clockLayout))
}

func hasClock(raw string) bool {
	return strings.Contains(raw, "T")
}

func parseInstant(raw string) (time.Time, error) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %s", raw)
}
