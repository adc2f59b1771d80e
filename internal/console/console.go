// Package console implements the interactive review loop: pick an event,
// generate both reminder drafts, edit them, and send each one separately.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"apptconfirm/internal/models"
	"apptconfirm/internal/outbox"
	"apptconfirm/internal/schedule"
	"apptconfirm/internal/session"
)

const dayLayout = "2006-01-02"

// EventSource supplies events for a day, or the next upcoming events when day is nil.
type EventSource interface {
	Fetch(ctx context.Context, day *time.Time) ([]models.Event, error)
}

// MailSender delivers one email and returns the provider's message ID.
type MailSender interface {
	Send(ctx context.Context, from, to, subject, body string) (string, error)
}

// Drafter produces reminder drafts. It never fails; errors come back as drafts.
type Drafter interface {
	Draft(ctx context.Context, ev models.Event, names models.Names, role models.Role) models.Draft
	DraftAll(ctx context.Context, ev models.Event, names models.Names) map[models.Role]models.Draft
}

// SentLog records delivered emails. It may be nil.
type SentLog interface {
	Record(ctx context.Context, e *outbox.Entry) error
}

// Console is one interactive session bound to an input and output stream.
type Console struct {
	in       *bufio.Scanner
	out      io.Writer
	logger   *slog.Logger
	source   EventSource
	drafter  Drafter
	sender   MailSender
	sentLog  SentLog
	location *time.Location
	from     string

	state      *session.Session
	names      models.Names
	recipients map[models.Role]string
}

// Options configures a Console.
type Options struct {
	In       io.Reader
	Out      io.Writer
	Logger   *slog.Logger
	Source   EventSource
	Drafter  Drafter
	Sender   MailSender
	SentLog  SentLog
	Location *time.Location
	From     string // Sender address; empty lets the MailSender decide
	Names    models.Names
}

// New creates a Console with a fresh session.
func New(opts Options) *Console {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	names := opts.Names
	defaults := models.DefaultNames()
	if names.Participant == "" {
		names.Participant = defaults.Participant
	}
	if names.Provider == "" {
		names.Provider = defaults.Provider
	}
	return &Console{
		in:         bufio.NewScanner(opts.In),
		out:        opts.Out,
		logger:     opts.Logger,
		source:     opts.Source,
		drafter:    opts.Drafter,
		sender:     opts.Sender,
		sentLog:    opts.SentLog,
		location:   loc,
		from:       opts.From,
		state:      session.New(),
		names:      names,
		recipients: make(map[models.Role]string),
	}
}

// Session exposes the underlying state, mainly for tests.
func (c *Console) Session() *session.Session {
	return c.state
}

// Run loads the events of day (upcoming events when nil) and then processes
// commands until "quit" or end of input. Command failures are printed and the
// loop continues.
func (c *Console) Run(ctx context.Context, day *time.Time) error {
	c.logger.Info("Starting review session", "sessionID", c.state.ID)
	c.printf("Appointment confirmation - type 'help' for commands.\n")
	if err := c.refresh(ctx, day); err != nil {
		c.printf("Error: %v\n", err)
	}

	for {
		c.printf("> ")
		if !c.in.Scan() {
			c.printf("\n")
			return c.in.Err()
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		quit, err := c.dispatch(ctx, line)
		if err != nil {
			c.printf("Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) dispatch(ctx context.Context, line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		c.printHelp()
	case "refresh":
		return false, c.refreshCommand(ctx, rest)
	case "list", "ls":
		c.printEvents()
	case "select":
		return false, c.selectCommand(rest)
	case "name":
		return false, c.nameCommand(rest)
	case "to":
		return false, c.toCommand(rest)
	case "generate", "gen":
		return false, c.generate(ctx)
	case "regenerate":
		return false, c.regenerate(ctx, rest)
	case "show":
		return false, c.showCommand(rest)
	case "subject":
		return false, c.subjectCommand(rest)
	case "body":
		return false, c.bodyCommand(rest)
	case "send":
		return false, c.sendCommand(ctx, rest)
	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	return false, nil
}

func (c *Console) printHelp() {
	c.printf(`Commands:
  refresh [YYYY-MM-DD|upcoming]  fetch events for a day (default today) or the next upcoming events
  list                           show fetched events
  select N                       work on event N; clears existing drafts
  name participant|provider NAME set a recipient's display name
  to participant|provider ADDRS  set recipients (comma separated)
  generate                       draft both emails
  regenerate participant|provider  redraft one email
  show [participant|provider]    print drafts
  subject participant|provider TEXT  replace a draft's subject
  body participant|provider      replace a draft's body (end with a line containing only ".")
  send participant|provider      send a draft
  quit                           leave
`)
}

func (c *Console) refreshCommand(ctx context.Context, arg string) error {
	switch arg {
	case "":
		now := time.Now().In(c.location)
		return c.refresh(ctx, &now)
	case "upcoming":
		return c.refresh(ctx, nil)
	}
	day, err := time.ParseInLocation(dayLayout, arg, c.location)
	if err != nil {
		return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", arg)
	}
	return c.refresh(ctx, &day)
}

func (c *Console) refresh(ctx context.Context, day *time.Time) error {
	events, err := c.source.Fetch(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}
	c.state.SetEvents(events)
	c.recipients = make(map[models.Role]string)
	c.printEvents()
	return nil
}

func (c *Console) printEvents() {
	events := c.state.Events()
	if len(events) == 0 {
		c.printf("No upcoming events found.\n")
		return
	}
	current, hasSelection := c.state.SelectedIndex()
	for i, ev := range events {
		marker := " "
		if hasSelection && i+1 == current {
			marker = "*"
		}
		c.printf("%s %d. %s (%s)\n", marker, i+1, ev.Title(), schedule.Label(ev))
	}
}

func (c *Console) selectCommand(arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("usage: select N")
	}
	before, hadSelection := c.state.SelectedIndex()
	ev, err := c.state.SelectIndex(n)
	if err != nil {
		return err
	}
	if !hadSelection || before != n {
		c.recipients = map[models.Role]string{
			models.RoleParticipant: strings.Join(ev.AttendeeEmails(), ", "),
		}
	}

	c.printf("Selected: %s (%s)\n", ev.Title(), schedule.Label(ev))
	c.printf("  %s: %s <%s>\n", models.RoleParticipant, c.names.Participant, c.recipients[models.RoleParticipant])
	c.printf("  %s: %s <%s>\n", models.RoleProvider, c.names.Provider, c.recipients[models.RoleProvider])
	return nil
}

func (c *Console) nameCommand(arg string) error {
	role, value, err := roleArg(arg)
	if err != nil || value == "" {
		return fmt.Errorf("usage: name participant|provider NAME")
	}
	if role == models.RoleProvider {
		c.names.Provider = value
	} else {
		c.names.Participant = value
	}
	c.printf("%s name set to %s\n", role, value)
	return nil
}

func (c *Console) toCommand(arg string) error {
	role, value, err := roleArg(arg)
	if err != nil {
		return fmt.Errorf("usage: to participant|provider ADDRESSES")
	}
	c.recipients[role] = value
	c.printf("%s recipients: %s\n", role, value)
	return nil
}

func (c *Console) generate(ctx context.Context) error {
	ev, ok := c.state.Selected()
	if !ok {
		return fmt.Errorf("no event selected")
	}
	c.printf("Generating emails...\n")
	drafts := c.drafter.DraftAll(ctx, ev, c.names)
	if err := c.state.SetDrafts(drafts); err != nil {
		return err
	}
	for _, role := range models.Roles {
		c.printDraft(role)
	}
	return nil
}

func (c *Console) regenerate(ctx context.Context, arg string) error {
	role, err := models.ParseRole(arg)
	if err != nil {
		return err
	}
	ev, ok := c.state.Selected()
	if !ok {
		return fmt.Errorf("no event selected")
	}

	drafts := make(map[models.Role]models.Draft, len(models.Roles))
	for _, r := range models.Roles {
		if d, ok := c.state.Draft(r); ok {
			drafts[r] = d
		}
	}
	drafts[role] = c.drafter.Draft(ctx, ev, c.names, role)
	if err := c.state.SetDrafts(drafts); err != nil {
		return err
	}
	c.printDraft(role)
	return nil
}

func (c *Console) showCommand(arg string) error {
	if arg == "" {
		for _, role := range models.Roles {
			c.printDraft(role)
		}
		return nil
	}
	role, err := models.ParseRole(arg)
	if err != nil {
		return err
	}
	c.printDraft(role)
	return nil
}

func (c *Console) printDraft(role models.Role) {
	d, ok := c.state.Draft(role)
	if !ok {
		c.printf("[%s] no draft\n", role)
		return
	}
	c.printf("----- %s email -----\nTo: %s\nSubject: %s\n\n%s\n", role, c.recipients[role], d.Subject, d.Body)
}

func (c *Console) subjectCommand(arg string) error {
	role, value, err := roleArg(arg)
	if err != nil {
		return fmt.Errorf("usage: subject participant|provider TEXT")
	}
	d, ok := c.state.Draft(role)
	if !ok {
		return fmt.Errorf("no %s draft; run 'generate' first", role)
	}
	return c.state.EditDraft(role, value, d.Body)
}

func (c *Console) bodyCommand(arg string) error {
	role, err := models.ParseRole(arg)
	if err != nil {
		return err
	}
	d, ok := c.state.Draft(role)
	if !ok {
		return fmt.Errorf("no %s draft; run 'generate' first", role)
	}

	c.printf("Enter the new body, finish with a line containing only \".\"\n")
	var lines []string
	for {
		if !c.in.Scan() {
			return fmt.Errorf("input ended before the body was finished")
		}
		line := c.in.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		lines = append(lines, line)
	}
	return c.state.EditDraft(role, d.Subject, strings.Join(lines, "\n"))
}

func (c *Console) sendCommand(ctx context.Context, arg string) error {
	role, err := models.ParseRole(arg)
	if err != nil {
		return err
	}
	ev, ok := c.state.Selected()
	if !ok {
		return fmt.Errorf("no event selected")
	}
	d, ok := c.state.Draft(role)
	if !ok {
		return fmt.Errorf("no %s draft; run 'generate' first", role)
	}
	to := strings.TrimSpace(c.recipients[role])
	if to == "" {
		return fmt.Errorf("please enter %s email with 'to %s ADDRESSES'", role, role)
	}

	id, err := c.sender.Send(ctx, c.from, to, d.Subject, d.Body)
	if err != nil {
		c.logger.Error("Send failed", "role", role, "eventID", ev.ID, "error", err)
		return fmt.Errorf("failed to send %s email: %w", role, err)
	}
	c.printf("%s email sent! ID: %s\n", role, id)

	if c.sentLog != nil {
		entry := &outbox.Entry{
			SessionID:  c.state.ID,
			EventID:    ev.ID,
			EventTitle: ev.Title(),
			Role:       role,
			Recipients: to,
			Subject:    d.Subject,
			MessageID:  id,
		}
		if err := c.sentLog.Record(ctx, entry); err != nil {
			c.logger.Warn("Could not record sent email", "messageID", id, "error", err)
		}
	}
	return nil
}

// roleArg splits "participant rest of line" into the role and the rest.
func roleArg(arg string) (models.Role, string, error) {
	first, rest, _ := strings.Cut(arg, " ")
	role, err := models.ParseRole(first)
	if err != nil {
		return "", "", err
	}
	return role, strings.TrimSpace(rest), nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
