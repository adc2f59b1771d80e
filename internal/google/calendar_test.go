package google

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"apptconfirm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const eventsJSON = `{
  "items": [
    {
      "id": "evt-1",
      "summary": "SAT Math",
      "description": "1:1 Tutoring",
      "start": {"dateTime": "2025-12-06T15:30:00-05:00"},
      "end": {"dateTime": "2025-12-06T17:00:00-05:00"},
      "attendees": [{"email": "mina@example.com"}, {"email": "parent@example.com"}]
    },
    {
      "id": "evt-2",
      "summary": "Holiday",
      "start": {"date": "2025-12-06"},
      "end": {"date": "2025-12-07"}
    }
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCalendar(t *testing.T, handler http.HandlerFunc) *CalendarClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return newCalendarClient(svc, discardLogger(), "", loc)
}

func TestCalendarClient_FetchDay(t *testing.T) {
	var query map[string][]string
	c := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	})

	day := time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)
	events, err := c.Fetch(context.Background(), &day)
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-12-06T05:00:00Z"}, query["timeMin"])
	assert.Equal(t, []string{"2025-12-07T04:59:59Z"}, query["timeMax"])
	assert.Equal(t, []string{"startTime"}, query["orderBy"])
	assert.Equal(t, []string{"true"}, query["singleEvents"])

	require.Len(t, events, 2)
	assert.Equal(t, models.Event{
		ID:          "evt-1",
		Summary:     "SAT Math",
		Description: "1:1 Tutoring",
		Start:       models.TimePoint{DateTime: "2025-12-06T15:30:00-05:00"},
		End:         models.TimePoint{DateTime: "2025-12-06T17:00:00-05:00"},
		Attendees:   []models.Attendee{{Email: "mina@example.com"}, {Email: "parent@example.com"}},
		Source:      "google",
	}, events[0])
	assert.Equal(t, models.TimePoint{Date: "2025-12-06"}, events[1].Start)
}

func TestCalendarClient_FetchUpcoming(t *testing.T) {
	var query map[string][]string
	c := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	events, err := c.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, []string{"10"}, query["maxResults"])
	assert.NotEmpty(t, query["timeMin"])
	assert.Empty(t, query["timeMax"])
}

func TestCalendarClient_FetchError(t *testing.T) {
	c := newTestCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "forbidden"}}`))
	})

	_, err := c.Fetch(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to retrieve events")
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start, end := DayBounds(time.Date(2025, 7, 4, 23, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, "2025-07-04T04:00:00Z", start.UTC().Format(time.RFC3339))
	assert.Equal(t, "2025-07-05T03:59:59Z", end.UTC().Format(time.RFC3339))
}
