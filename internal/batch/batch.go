package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"apptconfirm/internal/draft"
	"apptconfirm/internal/models"
	"apptconfirm/internal/outbox"

	"github.com/google/uuid"
)

// StateFile is written inside the output directory.
const StateFile = "draft-state.json"

// State records which events already have draft files. The key is the event
// ID and the value is the time the drafts were written.
type State map[string]time.Time

// EventSource lists the events to draft for.
type EventSource interface {
	Fetch(ctx context.Context, day *time.Time) ([]models.Event, error)
}

// Drafter produces both drafts for an event.
type Drafter interface {
	DraftAll(ctx context.Context, ev models.Event, names models.Names) map[models.Role]models.Draft
}

// SentChecker reports emails already sent for an event.
type SentChecker interface {
	SentFor(ctx context.Context, eventID string) ([]outbox.Entry, error)
}

// Batch drafts reminders for every event of a day into a directory, one file
// per role, so they can be reviewed and passed to the send command.
type Batch struct {
	logger  *slog.Logger
	source  EventSource
	drafter Drafter
	sent    SentChecker
	names   models.Names
	dir     string
	dryRun  bool
	force   bool
	state   State
}

// Options configures a Batch. Sent may be nil when no outbox is kept.
type Options struct {
	Logger  *slog.Logger
	Source  EventSource
	Drafter Drafter
	Sent    SentChecker
	Names   models.Names
	Dir     string
	DryRun  bool
	Force   bool
}

// New creates a Batch, loading the state file from the output directory.
func New(opts Options) (*Batch, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	state, err := loadState(opts.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("No draft state file found, starting fresh.", "dir", opts.Dir)
			state = make(State)
		} else {
			return nil, fmt.Errorf("failed to load draft state: %w", err)
		}
	}

	return &Batch{
		logger:  logger,
		source:  opts.Source,
		drafter: opts.Drafter,
		sent:    opts.Sent,
		names:   opts.Names,
		dir:     opts.Dir,
		dryRun:  opts.DryRun,
		force:   opts.Force,
		state:   state,
	}, nil
}

// Result summarises one run.
type Result struct {
	Drafted []string
	Skipped []string
	Failed  []string
	Files   []string
}

// Run drafts every event of day (or the upcoming events when day is nil).
// A failure on one event is logged and the run continues.
func (b *Batch) Run(ctx context.Context, day *time.Time) (*Result, error) {
	b.logger.Info("Starting draft batch.")

	events, err := b.source.Fetch(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	b.logger.Info("Fetched events.", "count", len(events))

	res := &Result{}
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		skip, err := b.shouldSkip(ctx, ev)
		if err != nil {
			b.logger.Error("Could not check sent emails", "event", ev.ID, "error", err)
		}
		if skip {
			res.Skipped = append(res.Skipped, ev.ID)
			continue
		}

		files, err := b.draftEvent(ctx, ev)
		if err != nil {
			b.logger.Error("Failed to draft event", "title", ev.Title(), "error", err)
			res.Failed = append(res.Failed, ev.ID)
			continue
		}
		res.Drafted = append(res.Drafted, ev.ID)
		res.Files = append(res.Files, files...)
	}

	if !b.dryRun && len(res.Drafted) > 0 {
		if err := b.saveState(); err != nil {
			b.logger.Error("Failed to save draft state", "error", err)
		}
	}

	b.logger.Info("Draft batch finished.", "drafted", len(res.Drafted), "skipped", len(res.Skipped), "failed", len(res.Failed))
	return res, nil
}

func (b *Batch) shouldSkip(ctx context.Context, ev models.Event) (bool, error) {
	if b.force {
		return false, nil
	}
	if at, ok := b.state[ev.ID]; ok {
		b.logger.Debug("Event already drafted, skipping.", "title", ev.Title(), "id", ev.ID, "draftedAt", at)
		return true, nil
	}
	if b.sent == nil {
		return false, nil
	}
	entries, err := b.sent.SentFor(ctx, ev.ID)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		b.logger.Debug("Reminders already sent, skipping.", "title", ev.Title(), "id", ev.ID, "sent", len(entries))
		return true, nil
	}
	return false, nil
}

func (b *Batch) draftEvent(ctx context.Context, ev models.Event) ([]string, error) {
	b.logger.Info("Drafting reminders.", "title", ev.Title())

	drafts := b.drafter.DraftAll(ctx, ev, b.names)
	// Failed generations are left out of the state so a plain rerun retries them.
	for _, role := range models.Roles {
		if d, ok := drafts[role]; !ok || draft.IsError(d) {
			return nil, fmt.Errorf("%s draft not generated: %s", role, d.Body)
		}
	}

	if b.dryRun {
		for _, role := range models.Roles {
			b.logger.Info("[DRY RUN] Would write draft", "title", ev.Title(), "role", role, "subject", drafts[role].Subject)
		}
		return nil, nil
	}

	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var files []string
	for _, role := range models.Roles {
		d := drafts[role]
		path := filepath.Join(b.dir, FileName(ev.ID, role))
		if err := os.WriteFile(path, []byte(Render(ev, d)), 0644); err != nil {
			return files, fmt.Errorf("failed to write %s draft: %w", role, err)
		}
		files = append(files, path)
	}

	b.state[ev.ID] = time.Now().UTC()
	return files, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the draft file name for an event and role. The readable
// part is sanitised, so a hash of the raw ID keeps distinct IDs apart.
func FileName(eventID string, role models.Role) string {
	name := unsafeChars.ReplaceAllString(eventID, "_")
	if name == "" {
		name = "event"
	}
	sum := uuid.NewSHA1(uuid.NameSpaceOID, []byte(eventID)).String()[:8]
	return fmt.Sprintf("%s-%s-%s.txt", name, sum, role)
}

// Render lays out a draft for review. Header lines come first; everything
// after the first blank line is the body.
func Render(ev models.Event, d models.Draft) string {
	return fmt.Sprintf("Event: %s\nSubject: %s\n\n%s\n", ev.Title(), d.Subject, d.Body)
}

// ReadDraft parses a file written by Render, after any edits by the operator.
func ReadDraft(path string) (models.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Draft{}, fmt.Errorf("failed to read draft file: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	header, body, found := strings.Cut(text, "\n\n")
	if !found {
		return models.Draft{}, fmt.Errorf("draft file %s has no blank line after its header", path)
	}

	d := models.Draft{Body: strings.TrimSpace(body)}
	for _, line := range strings.Split(header, "\n") {
		if v, ok := strings.CutPrefix(line, "Subject:"); ok {
			d.Subject = strings.TrimSpace(v)
		}
	}
	if d.Subject == "" {
		return models.Draft{}, fmt.Errorf("draft file %s has no Subject header", path)
	}
	return d, nil
}

func loadState(dir string) (State, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return state, nil
}

func (b *Batch) saveState() error {
	data, err := json.MarshalIndent(b.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft state: %w", err)
	}
	return os.WriteFile(filepath.Join(b.dir, StateFile), data, 0644)
}
