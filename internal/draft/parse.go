package draft

import (
	"strings"

	"apptconfirm/internal/models"
)

// SubjectMarker separates the subject line from the rest of a generated reply.
const SubjectMarker = "Subject:"

// DefaultSubject returns the subject used when a reply has no marker.
func DefaultSubject(role models.Role) string {
	if role == models.RoleProvider {
		return "Appointment Reminder"
	}
	return "Appointment Confirmation"
}

// Parse splits a generated reply into subject and body.
// The first SubjectMarker wins; the subject runs to the end of that line.
// A reply that does not follow the template is not an error: without a marker
// the whole reply becomes the body, and without a line break after the subject
// the body is left as the whole reply.
func Parse(reply string, role models.Role) models.Draft {
	d := models.Draft{
		Subject: DefaultSubject(role),
		Body:    strings.TrimSpace(reply),
	}

	_, rest, found := strings.Cut(reply, SubjectMarker)
	if !found {
		return d
	}

	subject, body, hasBody := strings.Cut(rest, "\n")
	d.Subject = strings.TrimSpace(subject)
	if hasBody {
		d.Body = strings.TrimSpace(body)
	}
	return d
}
