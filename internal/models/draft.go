package models

import (
	"fmt"
	"strings"
)

// Role identifies which recipient an email is addressed to.
type Role string

const (
	// RoleParticipant is the session attendee (the student).
	RoleParticipant Role = "participant"
	// RoleProvider is the session conductor (the teacher).
	RoleProvider Role = "provider"
)

// Roles lists the recipient roles in the order drafts are generated.
var Roles = []Role{RoleParticipant, RoleProvider}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch Role(s) {
	case RoleParticipant, RoleProvider:
		return Role(s), nil
	case "student":
		return RoleParticipant, nil
	case "teacher":
		return RoleProvider, nil
	}
	return "", fmt.Errorf("unknown role %q (want participant or provider)", s)
}

// FormattedSchedule is the human-readable date and time of an event.
type FormattedSchedule struct {
	Date string
	Time string
}

// Draft is a generated email awaiting review. The user may edit it before sending.
type Draft struct {
	Subject string
	Body    string
}

// Names holds the display names used in both reminder emails.
type Names struct {
	Participant string
	Provider    string
}

// DefaultNames returns the names used when the operator supplies none.
func DefaultNames() Names {
	return Names{Participant: "Student", Provider: "Teacher"}
}
