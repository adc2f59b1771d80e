package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"apptconfirm/internal/config"
	"apptconfirm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()
	assert.True(t, setupLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, setupLogger("WARN").Enabled(ctx, slog.LevelInfo))
	assert.True(t, setupLogger("bogus").Enabled(ctx, slog.LevelInfo))
	assert.False(t, setupLogger("").Enabled(ctx, slog.LevelDebug))
}

func TestFindEvent(t *testing.T) {
	events := []models.Event{{ID: "a"}, {ID: "b", Summary: "Math"}}
	ev, err := findEvent(events, "b")
	require.NoError(t, err)
	assert.Equal(t, "Math", ev.Summary)

	_, err = findEvent(events, "c")
	assert.ErrorContains(t, err, `event "c" not found`)
}

func TestReadBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(path, []byte("\nDear Student,\n\nSee you.\n\n"), 0644))
	body, err := readBody(path)
	require.NoError(t, err)
	assert.Equal(t, "Dear Student,\n\nSee you.", body)

	_, err = readBody(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "failed to open body file")
}

func TestOpenOutbox(t *testing.T) {
	cfg := config.Defaults()
	cfg.OutboxDB = ""
	store, err := openOutbox(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)

	cfg.OutboxDB = filepath.Join(t.TempDir(), "sent.db")
	store, err = openOutbox(cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}

func TestNewSender_ResendNeedsKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mail.Sender = "resend"
	_, err := newSender(context.Background(), cfg, slog.Default())
	assert.ErrorContains(t, err, "RESEND_API_KEY")

	cfg.Mail.ResendAPIKey = "re_test"
	sender, err := newSender(context.Background(), cfg, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, sender)
}
