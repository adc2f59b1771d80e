package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"apptconfirm/internal/config"
	"apptconfirm/internal/draft"
	"apptconfirm/internal/google"
	"apptconfirm/internal/icloud"
	"apptconfirm/internal/llm"
	"apptconfirm/internal/mail"
	"apptconfirm/internal/models"
	"apptconfirm/internal/outbox"
	"apptconfirm/internal/prompt"

	"golang.org/x/oauth2"
)

type eventSource interface {
	Fetch(ctx context.Context, day *time.Time) ([]models.Event, error)
}

type mailSender interface {
	Send(ctx context.Context, from, to, subject, body string) (string, error)
}

// deps holds everything a command needs, built from the config.
type deps struct {
	source   eventSource
	drafter  *draft.Drafter
	sender   mailSender
	outbox   *outbox.Store
	location *time.Location
}

func (d *deps) Close() {
	if d.outbox != nil {
		d.outbox.Close()
	}
}

func newDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*deps, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	source, err := newEventSource(ctx, cfg, logger, loc)
	if err != nil {
		return nil, err
	}

	drafter, err := newDrafter(cfg, logger)
	if err != nil {
		return nil, err
	}

	sender, err := newSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := openOutbox(cfg)
	if err != nil {
		// The sent-mail log is optional; sending still works without it.
		logger.Warn("Outbox unavailable, sent emails will not be recorded", "error", err)
	}

	return &deps{source: source, drafter: drafter, sender: sender, outbox: store, location: loc}, nil
}

func googleTokenSource(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, error) {
	oauthConfig, err := google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get google oauth config: %w", err)
	}
	ts, err := google.TokenSource(ctx, oauthConfig, cfg.Google.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load google token (run 'apptconfirm auth' first): %w", err)
	}
	return ts, nil
}

func newEventSource(ctx context.Context, cfg *config.Config, logger *slog.Logger, loc *time.Location) (eventSource, error) {
	switch cfg.CalendarSource {
	case "caldav":
		client, err := icloud.NewClient(ctx, logger, cfg.CalDAV.Endpoint, cfg.CalDAV.Username, cfg.CalDAV.Password, cfg.CalDAV.CalendarName, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		return client, nil
	default:
		ts, err := googleTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := google.NewCalendarClient(ctx, logger, ts, cfg.Google.CalendarID, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to create google calendar client: %w", err)
		}
		return client, nil
	}
}

func newDrafter(cfg *config.Config, logger *slog.Logger) (*draft.Drafter, error) {
	backend, err := llm.New(cfg.LLM.Provider, cfg.LLMAPIKey(), cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	if !backend.IsConfigured() {
		logger.Warn("No API key for the text generation provider; drafts will contain the error", "provider", cfg.LLM.Provider)
	}
	builder := prompt.NewBuilder(cfg.Template.Organization, cfg.Template.Signature)
	return draft.New(backend, builder, logger, cfg.LLM.Delay), nil
}

func newSender(ctx context.Context, cfg *config.Config, logger *slog.Logger) (mailSender, error) {
	switch cfg.Mail.Sender {
	case "resend":
		if cfg.Mail.ResendAPIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required when MAIL_SENDER=resend")
		}
		return mail.NewResendSender(logger, cfg.Mail.ResendAPIKey, cfg.Mail.From), nil
	default:
		ts, err := googleTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := google.NewGmailClient(ctx, logger, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to create gmail client: %w", err)
		}
		return client, nil
	}
}

// openOutbox returns nil, nil when the outbox is disabled.
func openOutbox(cfg *config.Config) (*outbox.Store, error) {
	if cfg.OutboxDB == "" {
		return nil, nil
	}
	return outbox.Open(cfg.OutboxDB)
}
