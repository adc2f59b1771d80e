package draft

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"apptconfirm/internal/models"
	"apptconfirm/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, p string) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEvent() models.Event {
	return models.Event{
		ID:      "evt-1",
		Summary: "SAT Math",
		Start:   models.TimePoint{DateTime: "2025-12-06T15:30:00-05:00"},
		End:     models.TimePoint{DateTime: "2025-12-06T17:00:00-05:00"},
	}
}

func TestDrafter_Draft(t *testing.T) {
	ctx := context.Background()
	builder := prompt.NewBuilder("", "")
	ev := testEvent()
	names := models.Names{Participant: "Mina", Provider: "Kim"}

	backend := new(mockCompleter)
	backend.On("Complete", ctx, builder.Build(ev, names, models.RoleParticipant)).
		Return("Subject: REMINDER: Mina's tutoring\n\nDear Mina,", nil)

	d := New(backend, builder, discardLogger(), 0)
	got := d.Draft(ctx, ev, names, models.RoleParticipant)

	assert.Equal(t, models.Draft{Subject: "REMINDER: Mina's tutoring", Body: "Dear Mina,"}, got)
	backend.AssertExpectations(t)
}

func TestDrafter_BackendFailureBecomesErrorDraft(t *testing.T) {
	ctx := context.Background()
	backend := new(mockCompleter)
	backend.On("Complete", ctx, mock.Anything).Return("", errors.New("quota exceeded"))

	d := New(backend, prompt.NewBuilder("", ""), discardLogger(), 0)

	text, ok := d.Generate(ctx, testEvent(), models.DefaultNames(), models.RoleProvider)
	assert.False(t, ok)
	assert.Equal(t, "Error generating email: quota exceeded", text)

	got := d.Draft(ctx, testEvent(), models.DefaultNames(), models.RoleProvider)
	assert.Equal(t, ErrorSubject, got.Subject)
	assert.Equal(t, "Error generating email: quota exceeded", got.Body)
	assert.True(t, IsError(got))
}

func TestIsError(t *testing.T) {
	assert.False(t, IsError(models.Draft{Subject: "Error", Body: "We found an error in the schedule."}))
	assert.False(t, IsError(models.Draft{Subject: "Reminder", Body: "Error generating email: x"}))
	assert.True(t, IsError(models.Draft{Subject: ErrorSubject, Body: ErrorPrefix + "timeout"}))
}

func TestDrafter_DraftAll(t *testing.T) {
	ctx := context.Background()
	builder := prompt.NewBuilder("", "")
	ev := testEvent()
	names := models.DefaultNames()

	backend := new(mockCompleter)
	backend.On("Complete", ctx, builder.Build(ev, names, models.RoleParticipant)).
		Return("Subject: For student\nbody one", nil).Once()
	backend.On("Complete", ctx, builder.Build(ev, names, models.RoleProvider)).
		Return("no marker here", nil).Once()

	d := New(backend, builder, discardLogger(), 10*time.Millisecond)

	start := time.Now()
	drafts := d.DraftAll(ctx, ev, names)
	elapsed := time.Since(start)

	require.Len(t, drafts, 2)
	assert.Equal(t, models.Draft{Subject: "For student", Body: "body one"}, drafts[models.RoleParticipant])
	assert.Equal(t, models.Draft{Subject: "Appointment Reminder", Body: "no marker here"}, drafts[models.RoleProvider])
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	backend.AssertExpectations(t)
}

func TestDrafter_DraftAllOneFailureDoesNotStopTheOther(t *testing.T) {
	ctx := context.Background()
	builder := prompt.NewBuilder("", "")
	ev := testEvent()
	names := models.DefaultNames()

	backend := new(mockCompleter)
	backend.On("Complete", ctx, builder.Build(ev, names, models.RoleParticipant)).
		Return("", errors.New("503")).Once()
	backend.On("Complete", ctx, builder.Build(ev, names, models.RoleProvider)).
		Return("Subject: ok\nfine", nil).Once()

	drafts := New(backend, builder, discardLogger(), 0).DraftAll(ctx, ev, names)

	assert.Equal(t, ErrorSubject, drafts[models.RoleParticipant].Subject)
	assert.Equal(t, models.Draft{Subject: "ok", Body: "fine"}, drafts[models.RoleProvider])
}

func TestDrafter_DraftAllCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := new(mockCompleter)
	backend.On("Complete", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("Subject: first\nbody", nil).Once()

	drafts := New(backend, prompt.NewBuilder("", ""), discardLogger(), time.Hour).
		DraftAll(ctx, testEvent(), models.DefaultNames())

	assert.Equal(t, "first", drafts[models.RoleParticipant].Subject)
	assert.Equal(t, ErrorSubject, drafts[models.RoleProvider].Subject)
	assert.Contains(t, drafts[models.RoleProvider].Body, context.Canceled.Error())
	backend.AssertExpectations(t)
}
