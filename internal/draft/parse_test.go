package draft

import (
	"testing"

	"apptconfirm/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		role     models.Role
		expected models.Draft
	}{
		{
			name:     "simple",
			reply:    "Subject: Hello\nWorld",
			role:     models.RoleParticipant,
			expected: models.Draft{Subject: "Hello", Body: "World"},
		},
		{
			name:     "no marker participant",
			reply:    "  Dear Mina,\nSee you soon.\n",
			role:     models.RoleParticipant,
			expected: models.Draft{Subject: "Appointment Confirmation", Body: "Dear Mina,\nSee you soon."},
		},
		{
			name:     "no marker provider",
			reply:    "Dear Kim teacher,",
			role:     models.RoleProvider,
			expected: models.Draft{Subject: "Appointment Reminder", Body: "Dear Kim teacher,"},
		},
		{
			name:  "first marker wins",
			reply: "Subject: REMINDER: Mina's tutoring\n\nDear Mina,\n\nSubject: SAT Math\n",
			role:  models.RoleParticipant,
			expected: models.Draft{
				Subject: "REMINDER: Mina's tutoring",
				Body:    "Dear Mina,\n\nSubject: SAT Math",
			},
		},
		{
			name:     "preamble before marker is dropped",
			reply:    "Sure! Here it is:\nSubject:   Hi there  \n\n Body text \n",
			role:     models.RoleProvider,
			expected: models.Draft{Subject: "Hi there", Body: "Body text"},
		},
		{
			name:     "marker without line break keeps whole reply as body",
			reply:    "Subject: Only a subject",
			role:     models.RoleParticipant,
			expected: models.Draft{Subject: "Only a subject", Body: "Subject: Only a subject"},
		},
		{
			name:     "empty reply",
			reply:    "",
			role:     models.RoleParticipant,
			expected: models.Draft{Subject: "Appointment Confirmation", Body: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.reply, tt.role))
		})
	}
}
