package models

// DefaultSummary is used when the calendar returns an event without a title.
const DefaultSummary = "Appointment"

// TimePoint mirrors a calendar start/end value.
// Exactly one of DateTime (an instant, e.g. "2025-12-06T15:30:00-05:00") or
// Date (an all-day calendar date, e.g. "2025-12-06") is expected to be set.
type TimePoint struct {
	DateTime string
	Date     string
}

// Raw returns the instant if present, otherwise the calendar date.
func (p TimePoint) Raw() string {
	if p.DateTime != "" {
		return p.DateTime
	}
	return p.Date
}

// Attendee is a single invitee of an event.
type Attendee struct {
	Email string
}

// Event represents an appointment read from a calendar source.
// Events are owned by the source and treated as read-only everywhere else.
type Event struct {
	ID          string     // Identifier assigned by the source calendar
	Summary     string     // Title of the appointment
	Description string     // Free text description, usually the session type
	Start       TimePoint  // Start of the appointment
	End         TimePoint  // End of the appointment
	Attendees   []Attendee // Invitees in calendar order
	Source      string     // The source of the event (e.g., "google", "caldav")
}

// AttendeeEmails returns the attendee addresses in calendar order.
func (e Event) AttendeeEmails() []string {
	emails := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		if a.Email != "" {
			emails = append(emails, a.Email)
		}
	}
	return emails
}

// Title returns the summary, falling back to DefaultSummary.
func (e Event) Title() string {
	if e.Summary == "" {
		return DefaultSummary
	}
	return e.Summary
}
