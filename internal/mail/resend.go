package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers reminder emails through the Resend API.
type ResendSender struct {
	client      *resend.Client
	fromAddress string
	logger      *slog.Logger
}

// NewResendSender creates a Resend sender. from is used when Send gets no sender.
func NewResendSender(logger *slog.Logger, apiKey, from string) *ResendSender {
	return &ResendSender{
		client:      resend.NewClient(apiKey),
		fromAddress: from,
		logger:      logger,
	}
}

// Send delivers a plain text email and returns the Resend message ID.
// to is a comma separated list of addresses.
func (r *ResendSender) Send(ctx context.Context, from, to, subject, body string) (string, error) {
	recipients := SplitAddresses(to)
	if len(recipients) == 0 {
		return "", fmt.Errorf("no recipient specified")
	}
	if from == "" {
		from = r.fromAddress
	}
	if from == "" {
		return "", fmt.Errorf("no sender address configured")
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      recipients,
		Subject: subject,
		Text:    body,
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("resend send failed: %w", err)
	}

	r.logger.Info("Email sent via Resend", "messageID", sent.Id, "to", to)
	return sent.Id, nil
}

// SplitAddresses splits a comma separated recipient list, dropping blanks.
func SplitAddresses(to string) []string {
	var out []string
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
