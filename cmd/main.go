package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"apptconfirm/internal/batch"
	"apptconfirm/internal/config"
	"apptconfirm/internal/console"
	"apptconfirm/internal/google"
	"apptconfirm/internal/models"
	"apptconfirm/internal/outbox"
	"apptconfirm/internal/schedule"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "apptconfirm",
		Usage: "Draft and send appointment reminder emails from calendar events.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a YAML config file (default ./" + config.DefaultFile + " if present)."},
		},
		Commands: []*cli.Command{
			authCommand(),
			eventsCommand(),
			draftCommand(),
			batchCommand(),
			reviewCommand(),
			sendCommand(),
			historyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func dayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "date", Usage: "Day to load events for (YYYY-MM-DD). Defaults to today."},
		&cli.BoolFlag{Name: "upcoming", Usage: "Load the next upcoming events instead of a single day."},
	}
}

func nameFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "participant-name", Usage: "Participant (student) display name."},
		&cli.StringFlag{Name: "provider-name", Usage: "Provider (teacher) display name."},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			if err := google.SaveToken(cfg.Google.TokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", cfg.Google.TokenFile)
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "List events for a day or the next upcoming events.",
		Flags: dayFlags(),
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			deps, err := newDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			day, err := parseDay(c, cfg)
			if err != nil {
				return err
			}
			events, err := deps.source.Fetch(c.Context, day)
			if err != nil {
				return fmt.Errorf("failed to fetch events: %w", err)
			}
			if len(events) == 0 {
				fmt.Println("No upcoming events found.")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s\t%s (%s)\t%s\n", ev.ID, ev.Title(), schedule.Label(ev), strings.Join(ev.AttendeeEmails(), ", "))
			}
			return nil
		},
	}
}

func draftCommand() *cli.Command {
	flags := append(append(dayFlags(), nameFlags()...),
		&cli.StringFlag{Name: "event", Required: true, Usage: "ID of the event to draft reminders for."},
		&cli.StringFlag{Name: "role", Usage: "Only draft for this role (participant or provider)."},
	)
	return &cli.Command{
		Name:  "draft",
		Usage: "Generate reminder drafts for one event and print them.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			deps, err := newDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			day, err := parseDay(c, cfg)
			if err != nil {
				return err
			}
			events, err := deps.source.Fetch(c.Context, day)
			if err != nil {
				return fmt.Errorf("failed to fetch events: %w", err)
			}
			ev, err := findEvent(events, c.String("event"))
			if err != nil {
				return err
			}

			names := namesFrom(c, cfg)
			var drafts map[models.Role]models.Draft
			if c.IsSet("role") {
				role, err := models.ParseRole(c.String("role"))
				if err != nil {
					return err
				}
				drafts = map[models.Role]models.Draft{role: deps.drafter.Draft(c.Context, ev, names, role)}
			} else {
				drafts = deps.drafter.DraftAll(c.Context, ev, names)
			}

			for _, role := range models.Roles {
				d, ok := drafts[role]
				if !ok {
					continue
				}
				fmt.Printf("----- %s email -----\nSubject: %s\n\n%s\n\n", role, d.Subject, d.Body)
			}
			return nil
		},
	}
}

func batchCommand() *cli.Command {
	flags := append(append(dayFlags(), nameFlags()...),
		&cli.StringFlag{Name: "out", Value: "drafts", Usage: "Directory the draft files are written to."},
		&cli.BoolFlag{Name: "dry-run", Usage: "Generate drafts but only log them."},
		&cli.BoolFlag{Name: "force", Usage: "Draft events again even if already drafted or sent."},
	)
	return &cli.Command{
		Name:  "batch",
		Usage: "Draft reminders for every event of a day into files for review.",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			deps, err := newDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			day, err := parseDay(c, cfg)
			if err != nil {
				return err
			}

			opts := batch.Options{
				Logger:  logger,
				Source:  deps.source,
				Drafter: deps.drafter,
				Names:   namesFrom(c, cfg),
				Dir:     c.String("out"),
				DryRun:  c.Bool("dry-run"),
				Force:   c.Bool("force"),
			}
			if deps.outbox != nil {
				opts.Sent = deps.outbox
			}
			b, err := batch.New(opts)
			if err != nil {
				return err
			}
			res, err := b.Run(c.Context, day)
			if err != nil {
				return err
			}
			for _, f := range res.Files {
				fmt.Println(f)
			}
			return nil
		},
	}
}

func reviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Interactively select an event, review the drafts and send them.",
		Flags: append(dayFlags(), nameFlags()...),
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			deps, err := newDeps(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			day, err := parseDay(c, cfg)
			if err != nil {
				return err
			}

			opts := console.Options{
				In:       os.Stdin,
				Out:      os.Stdout,
				Logger:   logger,
				Source:   deps.source,
				Drafter:  deps.drafter,
				Sender:   deps.sender,
				Location: deps.location,
				From:     cfg.Mail.From,
				Names:    namesFrom(c, cfg),
			}
			if deps.outbox != nil {
				opts.SentLog = deps.outbox
			}
			return console.New(opts).Run(c.Context, day)
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send an already reviewed email.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "role", Value: string(models.RoleParticipant), Usage: "Recipient role, recorded in the outbox."},
			&cli.StringFlag{Name: "event", Usage: "Event ID, recorded in the outbox."},
			&cli.StringFlag{Name: "to", Required: true, Usage: "Comma separated recipient addresses."},
			&cli.StringFlag{Name: "subject", Usage: "Email subject."},
			&cli.StringFlag{Name: "body-file", Value: "-", Usage: "File containing the body, '-' for stdin."},
			&cli.StringFlag{Name: "draft-file", Usage: "Draft written by the batch command; provides subject and body."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			role, err := models.ParseRole(c.String("role"))
			if err != nil {
				return err
			}
			subject, body, err := messageFrom(c)
			if err != nil {
				return err
			}

			sender, err := newSender(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			id, err := sender.Send(c.Context, cfg.Mail.From, c.String("to"), subject, body)
			if err != nil {
				return fmt.Errorf("failed to send %s email: %w", role, err)
			}
			fmt.Printf("%s email sent! ID: %s\n", role, id)

			store, err := openOutbox(cfg)
			if err != nil {
				logger.Warn("Outbox unavailable", "error", err)
				return nil
			}
			if store != nil {
				defer store.Close()
				entry := &outbox.Entry{
					SessionID:  "cli",
					EventID:    c.String("event"),
					Role:       role,
					Recipients: c.String("to"),
					Subject:    subject,
					MessageID:  id,
				}
				if err := store.Record(c.Context, entry); err != nil {
					logger.Warn("Could not record sent email", "messageID", id, "error", err)
				}
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recently sent reminder emails.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "Number of entries to show."},
			&cli.StringFlag{Name: "event", Usage: "Only show emails sent for this event ID."},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := setup(c)
			if err != nil {
				return err
			}
			store, err := openOutbox(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("the outbox is disabled (OUTBOX_DB is empty)")
			}
			defer store.Close()

			var entries []outbox.Entry
			if c.IsSet("event") {
				entries, err = store.SentFor(c.Context, c.String("event"))
			} else {
				entries, err = store.Recent(c.Context, c.Int("limit"))
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No emails sent yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n",
					e.SentAt.Local().Format("2006-01-02 15:04"), e.Role, e.EventTitle, e.Recipients, e.Subject, e.MessageID)
			}
			return nil
		},
	}
}

func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func parseDay(c *cli.Context, cfg *config.Config) (*time.Time, error) {
	if c.Bool("upcoming") {
		return nil, nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if !c.IsSet("date") {
		now := time.Now().In(loc)
		return &now, nil
	}
	day, err := time.ParseInLocation("2006-01-02", c.String("date"), loc)
	if err != nil {
		return nil, fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", c.String("date"), err)
	}
	return &day, nil
}

func namesFrom(c *cli.Context, cfg *config.Config) models.Names {
	names := models.Names{Participant: cfg.Template.ParticipantName, Provider: cfg.Template.ProviderName}
	if v := c.String("participant-name"); v != "" {
		names.Participant = v
	}
	if v := c.String("provider-name"); v != "" {
		names.Provider = v
	}
	return names
}

func findEvent(events []models.Event, id string) (models.Event, error) {
	for _, ev := range events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return models.Event{}, fmt.Errorf("event %q not found in the selected range", id)
}

func messageFrom(c *cli.Context) (string, string, error) {
	if path := c.String("draft-file"); path != "" {
		d, err := batch.ReadDraft(path)
		if err != nil {
			return "", "", err
		}
		subject := d.Subject
		if c.IsSet("subject") {
			subject = c.String("subject")
		}
		return subject, d.Body, nil
	}
	if c.String("subject") == "" {
		return "", "", fmt.Errorf("--subject is required without --draft-file")
	}
	body, err := readBody(c.String("body-file"))
	if err != nil {
		return "", "", err
	}
	return c.String("subject"), body, nil
}

func readBody(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open body file: %w", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
