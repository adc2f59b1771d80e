package session

import (
	"fmt"

	"apptconfirm/internal/models"

	"github.com/google/uuid"
)

// Session holds the state of one interactive review: the fetched events, the
// event being worked on, and the drafts generated for it.
//
// Drafts always belong to the selected event. Replacing the event list or
// selecting a different event discards them.
type Session struct {
	ID       string
	events   []models.Event
	selected *models.Event
	position int // index of selected in events
	drafts   map[models.Role]models.Draft
}

// New creates an empty session.
func New() *Session {
	return &Session{
		ID:     uuid.New().String(),
		drafts: make(map[models.Role]models.Draft),
	}
}

// SetEvents replaces the event list, clearing the selection and all drafts.
func (s *Session) SetEvents(events []models.Event) {
	s.events = events
	s.selected = nil
	s.clearDrafts()
}

// Events returns the current event list.
func (s *Session) Events() []models.Event {
	return s.events
}

// Select makes the first event with the given ID current.
// Drafts are cleared only when the selection actually changes.
func (s *Session) Select(id string) error {
	for i := range s.events {
		if s.events[i].ID == id {
			s.selectAt(i)
			return nil
		}
	}
	return fmt.Errorf("no event with id %q", id)
}

// SelectIndex selects the n-th event (1-based) of the current list. Events
// are told apart by position, so entries sharing an ID stay distinct.
func (s *Session) SelectIndex(n int) (models.Event, error) {
	if n < 1 || n > len(s.events) {
		return models.Event{}, fmt.Errorf("event number %d out of range (1-%d)", n, len(s.events))
	}
	s.selectAt(n - 1)
	return *s.selected, nil
}

func (s *Session) selectAt(i int) {
	if s.selected != nil && s.position == i && s.selected.ID == s.events[i].ID {
		return
	}
	ev := s.events[i]
	s.selected = &ev
	s.position = i
	s.clearDrafts()
}

// SelectedIndex returns the 1-based list position of the current event.
func (s *Session) SelectedIndex() (int, bool) {
	if s.selected == nil {
		return 0, false
	}
	return s.position + 1, true
}

// Selected returns the current event, if any.
func (s *Session) Selected() (models.Event, bool) {
	if s.selected == nil {
		return models.Event{}, false
	}
	return *s.selected, true
}

// SetDrafts stores freshly generated drafts, replacing earlier ones.
func (s *Session) SetDrafts(drafts map[models.Role]models.Draft) error {
	if s.selected == nil {
		return fmt.Errorf("no event selected")
	}
	s.clearDrafts()
	for role, d := range drafts {
		s.drafts[role] = d
	}
	return nil
}

// Draft returns the draft for a role.
func (s *Session) Draft(role models.Role) (models.Draft, bool) {
	d, ok := s.drafts[role]
	return d, ok
}

// EditDraft replaces the subject and body of an existing draft.
func (s *Session) EditDraft(role models.Role, subject, body string) error {
	if _, ok := s.drafts[role]; !ok {
		return fmt.Errorf("no %s draft to edit", role)
	}
	s.drafts[role] = models.Draft{Subject: subject, Body: body}
	return nil
}

func (s *Session) clearDrafts() {
	for role := range s.drafts {
		delete(s.drafts, role)
	}
}
