package draft

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"apptconfirm/internal/models"
)

const (
	// ErrorSubject is the subject of a draft whose generation failed.
	ErrorSubject = "Error"
	// ErrorPrefix starts the body of such a draft.
	ErrorPrefix = "Error generating email: "

	// DefaultDelay separates consecutive backend calls to stay under rate limits.
	DefaultDelay = 2 * time.Second
)

// Completer is a single-shot text completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PromptBuilder composes the instruction for one recipient role.
type PromptBuilder interface {
	Build(ev models.Event, names models.Names, role models.Role) string
}

// Drafter turns an event into reviewable email drafts.
type Drafter struct {
	backend Completer
	prompts PromptBuilder
	logger  *slog.Logger
	delay   time.Duration
}

// New creates a Drafter. A negative delay is treated as zero.
func New(backend Completer, prompts PromptBuilder, logger *slog.Logger, delay time.Duration) *Drafter {
	if delay < 0 {
		delay = 0
	}
	return &Drafter{backend: backend, prompts: prompts, logger: logger, delay: delay}
}

// Generate asks the backend for the raw reply for one role.
// Backend failures are returned as a readable message with ok=false rather than
// as an error, so they can be shown to the user and retried by hand.
func (d *Drafter) Generate(ctx context.Context, ev models.Event, names models.Names, role models.Role) (text string, ok bool) {
	p := d.prompts.Build(ev, names, role)
	d.logger.Debug("Requesting draft", "role", role, "eventID", ev.ID, "promptBytes", len(p))

	reply, err := d.backend.Complete(ctx, p)
	if err != nil {
		d.logger.Error("Draft generation failed", "role", role, "eventID", ev.ID, "error", err)
		return ErrorPrefix + err.Error(), false
	}
	return reply, true
}

// Draft generates and parses the email for one role.
func (d *Drafter) Draft(ctx context.Context, ev models.Event, names models.Names, role models.Role) models.Draft {
	text, ok := d.Generate(ctx, ev, names, role)
	if !ok {
		return models.Draft{Subject: ErrorSubject, Body: text}
	}
	return Parse(text, role)
}

// DraftAll generates the participant draft, waits, then generates the provider
// draft. If ctx is cancelled during the wait the provider draft carries the
// cancellation as its error body.
func (d *Drafter) DraftAll(ctx context.Context, ev models.Event, names models.Names) map[models.Role]models.Draft {
	drafts := make(map[models.Role]models.Draft, len(models.Roles))
	for i, role := range models.Roles {
		if i > 0 {
			if err := d.wait(ctx); err != nil {
				drafts[role] = models.Draft{Subject: ErrorSubject, Body: ErrorPrefix + err.Error()}
				continue
			}
		}
		drafts[role] = d.Draft(ctx, ev, names, role)
	}
	return drafts
}

// IsError reports whether d stands in for a failed generation.
func IsError(d models.Draft) bool {
	return d.Subject == ErrorSubject && strings.HasPrefix(d.Body, ErrorPrefix)
}

func (d *Drafter) wait(ctx context.Context) error {
	if d.delay == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
