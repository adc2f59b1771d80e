package prompt

import (
	"fmt"
	"strings"

	"apptconfirm/internal/models"
	"apptconfirm/internal/schedule"
)

const (
	defaultOrganization = "Elite Prep Suwanee"
	defaultSignature    = "Andy Lee / Elite Prep Suwanee"
)

// Builder composes the instruction sent to the generative backend.
type Builder struct {
	Organization string // Shown in the assistant persona line
	Signature    string // Closing line of every email
}

// NewBuilder returns a Builder, filling empty fields with defaults.
func NewBuilder(organization, signature string) *Builder {
	if organization == "" {
		organization = defaultOrganization
	}
	if signature == "" {
		signature = defaultSignature
	}
	return &Builder{Organization: organization, Signature: signature}
}

// Build returns the prompt asking for a reminder addressed to role.
func (b *Builder) Build(ev models.Event, names models.Names, role models.Role) string {
	sched := schedule.FormatEvent(ev, role)

	var p strings.Builder
	fmt.Fprintf(&p, "You are an automated email assistant for %s.\n", b.Organization)
	p.WriteString("Please generate a confirmation email for a tutoring appointment using the EXACT format below.\n")
	p.WriteString("Do not add any extra text or conversational filler.\n\n")

	p.WriteString("Event Details:\n")
	fmt.Fprintf(&p, "- Subject/Topic: %s\n", ev.Title())
	fmt.Fprintf(&p, "- Date: %s\n", sched.Date)
	fmt.Fprintf(&p, "- Time Range: %s\n", sched.Time)
	fmt.Fprintf(&p, "- Description/Type: %s\n", ev.Description)
	fmt.Fprintf(&p, "- Teacher Name: %s\n", names.Provider)
	fmt.Fprintf(&p, "- Student Name: %s\n\n", names.Participant)

	p.WriteString("Format Requirements:\n")
	if role == models.RoleProvider {
		p.WriteString("- Date format: 'MM. dd, yyyy' (e.g. 12. 06, 2025)\n")
	} else {
		p.WriteString("- Date format: 'Month, Day, Year' (e.g. December, 06, 2025)\n")
	}
	p.WriteString("- Time format: 'h:mmam - h:mmpm' (e.g. 3:30pm - 5:00pm)\n")
	p.WriteString("- [Type] and [Subject] should be extracted from the event details.\n\n")

	p.WriteString("Output Format:\n")
	if role == models.RoleProvider {
		b.writeProviderTemplate(&p, names)
	} else {
		b.writeParticipantTemplate(&p, names)
	}
	return p.String()
}

func (b *Builder) writeParticipantTemplate(p *strings.Builder, n models.Names) {
	fmt.Fprintf(p, "Subject: REMINDER: %s's tutoring with %s Teacher - [Date] at [Time]\n\n", n.Participant, n.Provider)
	fmt.Fprintf(p, "Dear %s,\n\n", n.Participant)
	fmt.Fprintf(p, "This is a reminder that %s has a tutoring session with %s Teacher, [Date] at [Time]\n\n", n.Participant, n.Provider)
	writeDetailBlock(p)
	p.WriteString("If you cannot attend the tutoring session, please reply with **[N]**, and if you can attend, please reply with **[Y]** as soon as possible.\n\n")
	p.WriteString("If you have any questions or need further details, please feel free to contact us anytime.\n\n")
	fmt.Fprintf(p, "Best regards,\n\n%s\n", b.Signature)
}

func (b *Builder) writeProviderTemplate(p *strings.Builder, n models.Names) {
	fmt.Fprintf(p, "Subject: REMINDER: %s teacher has tutoring with %s - [Date] at [Time]\n\n", n.Provider, n.Participant)
	fmt.Fprintf(p, "Dear %s teacher,\n\n", n.Provider)
	fmt.Fprintf(p, "This is a reminder that %s teacher has a tutoring session with %s, [Date] at [Time]\n\n", n.Provider, n.Participant)
	writeDetailBlock(p)
	p.WriteString("If you have any questions or need further details, please feel free to contact us.\n\n")
	fmt.Fprintf(p, "Best regards,\n\n%s\n", b.Signature)
}

func writeDetailBlock(p *strings.Builder) {
	p.WriteString("Date: [Date]\n")
	p.WriteString("Time: [Time]\n")
	p.WriteString("Type: [Type]\n")
	p.WriteString("Subject: [Subject]\n\n")
}
