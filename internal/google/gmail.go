package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const me = "me"

// GmailClient sends mail as the authenticated user.
type GmailClient struct {
	service *gmail.Service
	logger  *slog.Logger
}

// NewGmailClient creates a Gmail sender that shares the calendar credentials.
func NewGmailClient(ctx context.Context, logger *slog.Logger, ts oauth2.TokenSource) (*GmailClient, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &GmailClient{service: service, logger: logger}, nil
}

// SenderAddress returns the email address of the authenticated account.
func (c *GmailClient) SenderAddress(ctx context.Context) (string, error) {
	profile, err := c.service.Users.GetProfile(me).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.EmailAddress, nil
}

// Send delivers a plain text message and returns its Gmail message ID.
// to is a comma separated list of addresses. An empty from is resolved to the
// authenticated account's address.
func (c *GmailClient) Send(ctx context.Context, from, to, subject, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("no recipient specified")
	}
	if from == "" {
		addr, err := c.SenderAddress(ctx)
		if err != nil {
			return "", err
		}
		from = addr
	}

	raw, err := BuildMessage(from, to, subject, body)
	if err != nil {
		return "", err
	}

	sent, err := c.service.Users.Messages.Send(me, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Info("Email sent via Gmail", "messageID", sent.Id, "to", to)
	return sent.Id, nil
}

// BuildMessage renders an RFC 5322 plain text message.
func BuildMessage(from, to, subject, body string) ([]byte, error) {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	msg.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&msg)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return msg.Bytes(), nil
}
