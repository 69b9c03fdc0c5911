package service

import (
	"context"
	"sync"

	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/overlap"
	"github.com/PI-PropertEase/CalendarService/internal/queue"
	"github.com/PI-PropertEase/CalendarService/internal/repository"
)

// fakeStore is an in-memory Store with copy-on-begin transactions: a failing
// fn leaves the committed state untouched, mirroring the SQL rollback path.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	events []model.Event
}

func newFakeStore() *fakeStore { return &fakeStore{nextID: 1} }

func (s *fakeStore) InTx(_ context.Context, fn func(repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]model.Event, len(s.events))
	copy(snapshot, s.events)
	snapID := s.nextID
	if err := fn(&fakeTx{store: s}); err != nil {
		s.events = snapshot
		s.nextID = snapID
		return err
	}
	return nil
}

func (s *fakeStore) EventsByOwner(_ context.Context, ownerEmail string) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, ev := range s.events {
		if ev.OwnerEmail == ownerEmail {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) EventsByOwnerAndType(_ context.Context, ownerEmail string, typ model.EventType) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, ev := range s.events {
		if ev.OwnerEmail == ownerEmail && ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out, nil
}

// seed inserts an event directly, bypassing any checks, and returns its id.
func (s *fakeStore) seed(ev model.Event) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.nextID
	s.nextID++
	s.events = append(s.events, ev)
	return ev.ID
}

func (s *fakeStore) byID(id int64) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			ev := s.events[i]
			return &ev
		}
	}
	return nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) CreateEvent(_ context.Context, ev *model.Event) error {
	if ev.Type == model.EventTypeReservation {
		for _, cur := range t.store.events {
			if cur.Type == model.EventTypeReservation &&
				cur.Reservation.Channel == ev.Reservation.Channel &&
				cur.Reservation.ExternalID == ev.Reservation.ExternalID {
				return repository.ErrDuplicateReservation
			}
		}
	}
	ev.ID = t.store.nextID
	t.store.nextID++
	t.store.events = append(t.store.events, cloneEvent(ev))
	return nil
}

func (t *fakeTx) ManagementEventByID(_ context.Context, typ model.EventType, id int64) (*model.Event, error) {
	for i := range t.store.events {
		if t.store.events[i].ID == id && t.store.events[i].Type == typ {
			ev := cloneEvent(&t.store.events[i])
			return &ev, nil
		}
	}
	return nil, repository.ErrEventNotFound
}

func (t *fakeTx) UpdateManagementEvent(_ context.Context, ev *model.Event) error {
	for i := range t.store.events {
		if t.store.events[i].ID == ev.ID {
			t.store.events[i] = cloneEvent(ev)
			return nil
		}
	}
	return repository.ErrEventNotFound
}

func (t *fakeTx) DeleteManagementEvent(_ context.Context, typ model.EventType, id int64, ownerEmail string) (bool, error) {
	for i := range t.store.events {
		ev := &t.store.events[i]
		if ev.ID == id && ev.Type == typ && ev.OwnerEmail == ownerEmail {
			t.store.events = append(t.store.events[:i], t.store.events[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) Spans(_ context.Context, ownerEmail string, propertyID int64) ([]overlap.Span, error) {
	var spans []overlap.Span
	for _, ev := range t.store.events {
		if ev.OwnerEmail != ownerEmail || ev.PropertyID != propertyID {
			continue
		}
		if ev.Type == model.EventTypeReservation && ev.Reservation.Status == model.StatusCanceled {
			continue
		}
		spans = append(spans, overlap.Span{ID: ev.ID, Begin: ev.Begin, End: ev.End})
	}
	return spans, nil
}

func (t *fakeTx) ReservationByChannelID(_ context.Context, ch model.Channel, externalID int64) (*model.Event, error) {
	for i := range t.store.events {
		ev := &t.store.events[i]
		if ev.Type == model.EventTypeReservation &&
			ev.Reservation.Channel == ch &&
			ev.Reservation.ExternalID == externalID {
			out := cloneEvent(ev)
			return &out, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) SetReservationStatus(_ context.Context, id int64, st model.ReservationStatus) error {
	for i := range t.store.events {
		if t.store.events[i].ID == id {
			t.store.events[i].Reservation.Status = st
			return nil
		}
	}
	return repository.ErrEventNotFound
}

func (t *fakeTx) ConfirmedReservations(_ context.Context, propertyID int64) ([]model.Event, error) {
	var out []model.Event
	for i := range t.store.events {
		ev := &t.store.events[i]
		if ev.Type == model.EventTypeReservation &&
			ev.PropertyID == propertyID &&
			ev.Reservation.Status == model.StatusConfirmed {
			out = append(out, cloneEvent(ev))
		}
	}
	return out, nil
}

func cloneEvent(ev *model.Event) model.Event {
	out := *ev
	if ev.Reservation != nil {
		res := *ev.Reservation
		out.Reservation = &res
	}
	if ev.Management != nil {
		mgmt := *ev.Management
		out.Management = &mgmt
	}
	return out
}

// fakeDirectory is an in-memory owner -> properties mapping.
type fakeDirectory struct {
	mu       sync.Mutex
	mappings map[string]map[int64]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{mappings: map[string]map[int64]bool{}}
}

func (d *fakeDirectory) ControlsProperty(_ context.Context, ownerEmail string, propertyID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mappings[ownerEmail][propertyID], nil
}

func (d *fakeDirectory) AppendMapping(_ context.Context, ownerEmail string, propertyID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mappings[ownerEmail] == nil {
		d.mappings[ownerEmail] = map[int64]bool{}
	}
	d.mappings[ownerEmail][propertyID] = true
	return nil
}

// publishedMessage records one Notifier call; Channel is empty on broadcast.
type publishedMessage struct {
	Channel model.Channel
	Type    string
	Body    any
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []publishedMessage
	failWith error
}

func (n *fakeNotifier) Broadcast(_ context.Context, msgType queue.MessageType, body any) error {
	return n.record("", msgType, body)
}

func (n *fakeNotifier) ToChannel(_ context.Context, ch model.Channel, msgType queue.MessageType, body any) error {
	return n.record(ch, msgType, body)
}

func (n *fakeNotifier) record(ch model.Channel, msgType queue.MessageType, body any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.messages = append(n.messages, publishedMessage{Channel: ch, Type: string(msgType), Body: body})
	return nil
}

func (n *fakeNotifier) sent() []publishedMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]publishedMessage, len(n.messages))
	copy(out, n.messages)
	return out
}
