package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/overlap"
	"github.com/PI-PropertEase/CalendarService/internal/queue"
	"github.com/PI-PropertEase/CalendarService/internal/repository"
	"github.com/PI-PropertEase/CalendarService/internal/service"
)

// memStore is a minimal in-memory Store for exercising handlers end to end.
type memStore struct {
	nextID int64
	events []model.Event
}

func (s *memStore) InTx(_ context.Context, fn func(repository.Tx) error) error {
	snapshot := make([]model.Event, len(s.events))
	copy(snapshot, s.events)
	snapID := s.nextID
	if err := fn(&memTx{s}); err != nil {
		s.events = snapshot
		s.nextID = snapID
		return err
	}
	return nil
}

func (s *memStore) EventsByOwner(_ context.Context, owner string) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range s.events {
		if ev.OwnerEmail == owner {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memStore) EventsByOwnerAndType(_ context.Context, owner string, typ model.EventType) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range s.events {
		if ev.OwnerEmail == owner && ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out, nil
}

type memTx struct{ s *memStore }

func (t *memTx) CreateEvent(_ context.Context, ev *model.Event) error {
	if t.s.nextID == 0 {
		t.s.nextID = 1
	}
	ev.ID = t.s.nextID
	t.s.nextID++
	t.s.events = append(t.s.events, *ev)
	return nil
}

func (t *memTx) ManagementEventByID(_ context.Context, typ model.EventType, id int64) (*model.Event, error) {
	for i := range t.s.events {
		if t.s.events[i].ID == id && t.s.events[i].Type == typ {
			ev := t.s.events[i]
			return &ev, nil
		}
	}
	return nil, repository.ErrEventNotFound
}

func (t *memTx) UpdateManagementEvent(_ context.Context, ev *model.Event) error {
	for i := range t.s.events {
		if t.s.events[i].ID == ev.ID {
			t.s.events[i] = *ev
			return nil
		}
	}
	return repository.ErrEventNotFound
}

func (t *memTx) DeleteManagementEvent(_ context.Context, typ model.EventType, id int64, owner string) (bool, error) {
	for i := range t.s.events {
		ev := t.s.events[i]
		if ev.ID == id && ev.Type == typ && ev.OwnerEmail == owner {
			t.s.events = append(t.s.events[:i], t.s.events[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Spans(_ context.Context, owner string, propertyID int64) ([]overlap.Span, error) {
	var spans []overlap.Span
	for _, ev := range t.s.events {
		if ev.OwnerEmail != owner || ev.PropertyID != propertyID {
			continue
		}
		if ev.Type == model.EventTypeReservation && ev.Reservation.Status == model.StatusCanceled {
			continue
		}
		spans = append(spans, overlap.Span{ID: ev.ID, Begin: ev.Begin, End: ev.End})
	}
	return spans, nil
}

func (t *memTx) ReservationByChannelID(context.Context, model.Channel, int64) (*model.Event, error) {
	return nil, nil
}

func (t *memTx) SetReservationStatus(context.Context, int64, model.ReservationStatus) error {
	return nil
}

func (t *memTx) ConfirmedReservations(context.Context, int64) ([]model.Event, error) {
	return nil, nil
}

type memDirectory struct{ owned map[string][]int64 }

func (d *memDirectory) ControlsProperty(_ context.Context, owner string, propertyID int64) (bool, error) {
	for _, id := range d.owned[owner] {
		if id == propertyID {
			return true, nil
		}
	}
	return false, nil
}

func (d *memDirectory) AppendMapping(_ context.Context, owner string, propertyID int64) error {
	d.owned[owner] = append(d.owned[owner], propertyID)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Broadcast(context.Context, queue.MessageType, any) error { return nil }
func (noopNotifier) ToChannel(context.Context, model.Channel, queue.MessageType, any) error {
	return nil
}

const testOwner = "owner@propertease.pt"

// futureTime returns a stable RFC3339-representable instant safely past the
// create boundary's not-in-the-past check.
func futureTime() time.Time {
	return time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
}

func newTestHandler(t *testing.T) (*EventHandler, *memStore) {
	t.Helper()
	store := &memStore{nextID: 1}
	dir := &memDirectory{owned: map[string][]int64{testOwner: {7}}}
	svc := service.NewManagementService(store, dir, noopNotifier{}, nil)
	return NewEventHandler(svc), store
}

func doRequest(h echo.HandlerFunc, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("owner_email", testOwner)
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for k, v := range params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	_ = h(c)
	return rec
}

func createBody(begin, end time.Time) string {
	return fmt.Sprintf(`{"property_id":7,"begin_datetime":%q,"end_datetime":%q,"worker_name":"Maria"}`,
		begin.Format(time.RFC3339), end.Format(time.RFC3339))
}

func TestCreateManagementEvent(t *testing.T) {
	h, store := newTestHandler(t)
	begin := futureTime()

	rec := doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/cleaning",
		createBody(begin, begin.Add(3*time.Hour)), map[string]string{"kind": "cleaning"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.events, 1)
	assert.Equal(t, model.EventTypeCleaning, store.events[0].Type)
	assert.Equal(t, testOwner, store.events[0].OwnerEmail)

	var got model.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotZero(t, got.ID)
	assert.Equal(t, "Maria", got.Management.WorkerName)
}

func TestCreateManagementEventUnknownKind(t *testing.T) {
	h, _ := newTestHandler(t)
	begin := futureTime()

	rec := doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/party",
		createBody(begin, begin.Add(time.Hour)), map[string]string{"kind": "party"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/reservation",
		createBody(begin, begin.Add(time.Hour)), map[string]string{"kind": "reservation"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "reservations are not creatable over REST")
}

func TestCreateManagementEventValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	begin := futureTime()

	// end before begin
	rec := doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/cleaning",
		createBody(begin, begin.Add(-time.Hour)), map[string]string{"kind": "cleaning"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// maintenance without company_name
	body := fmt.Sprintf(`{"property_id":7,"begin_datetime":%q,"end_datetime":%q}`,
		begin.Format(time.RFC3339), begin.Add(time.Hour).Format(time.RFC3339))
	rec = doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/maintenance",
		body, map[string]string{"kind": "maintenance"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// missing property_id
	body = fmt.Sprintf(`{"begin_datetime":%q,"end_datetime":%q,"worker_name":"Maria"}`,
		begin.Format(time.RFC3339), begin.Add(time.Hour).Format(time.RFC3339))
	rec = doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/cleaning",
		body, map[string]string{"kind": "cleaning"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// begin in the past
	past := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	rec = doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/cleaning",
		createBody(past, past.Add(time.Hour)), map[string]string{"kind": "cleaning"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateManagementEventNotOwnedProperty(t *testing.T) {
	h, _ := newTestHandler(t)
	begin := futureTime()

	body := fmt.Sprintf(`{"property_id":99,"begin_datetime":%q,"end_datetime":%q,"worker_name":"Maria"}`,
		begin.Format(time.RFC3339), begin.Add(time.Hour).Format(time.RFC3339))
	rec := doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/cleaning",
		body, map[string]string{"kind": "cleaning"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateManagementEventOverlap(t *testing.T) {
	h, store := newTestHandler(t)
	begin := futureTime()
	store.events = append(store.events, model.Event{
		ID: 1, Type: model.EventTypeMaintenance, PropertyID: 7, OwnerEmail: testOwner,
		Begin: begin, End: begin.Add(4 * time.Hour),
		Management: &model.ManagementFields{CompanyName: "FixIt"},
	})
	store.nextID = 2

	rec := doRequest(h.CreateManagementEvent, http.MethodPost, "/v1/events/management/cleaning",
		createBody(begin.Add(time.Hour), begin.Add(2*time.Hour)), map[string]string{"kind": "cleaning"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, store.events, 1)
}

func TestUpdateManagementEvent(t *testing.T) {
	h, store := newTestHandler(t)
	begin := futureTime()
	store.events = append(store.events, model.Event{
		ID: 1, Type: model.EventTypeCleaning, PropertyID: 7, OwnerEmail: testOwner,
		Begin: begin, End: begin.Add(2 * time.Hour),
		Management: &model.ManagementFields{WorkerName: "Maria"},
	})
	store.nextID = 2

	body := `{"worker_name":"Joana"}`
	rec := doRequest(h.UpdateManagementEvent, http.MethodPut, "/v1/events/management/cleaning/1",
		body, map[string]string{"kind": "cleaning", "id": "1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Joana", store.events[0].Management.WorkerName)
	assert.Equal(t, begin, store.events[0].Begin, "absent fields keep their stored value")
}

func TestUpdateManagementEventBeginInPast(t *testing.T) {
	h, store := newTestHandler(t)
	begin := futureTime()
	store.events = append(store.events, model.Event{
		ID: 1, Type: model.EventTypeCleaning, PropertyID: 7, OwnerEmail: testOwner,
		Begin: begin, End: begin.Add(2 * time.Hour),
		Management: &model.ManagementFields{WorkerName: "Maria"},
	})
	store.nextID = 2

	past := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	body := fmt.Sprintf(`{"begin_datetime":%q}`, past.Format(time.RFC3339))
	rec := doRequest(h.UpdateManagementEvent, http.MethodPut, "/v1/events/management/cleaning/1",
		body, map[string]string{"kind": "cleaning", "id": "1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, begin, store.events[0].Begin, "rejected update must leave the row unchanged")
}

func TestUpdateManagementEventBadID(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h.UpdateManagementEvent, http.MethodPut, "/v1/events/management/cleaning/abc",
		`{}`, map[string]string{"kind": "cleaning", "id": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteManagementEvent(t *testing.T) {
	h, store := newTestHandler(t)
	begin := futureTime()
	store.events = append(store.events, model.Event{
		ID: 1, Type: model.EventTypeCleaning, PropertyID: 7, OwnerEmail: testOwner,
		Begin: begin, End: begin.Add(2 * time.Hour),
		Management: &model.ManagementFields{WorkerName: "Maria"},
	})
	store.nextID = 2

	rec := doRequest(h.DeleteManagementEvent, http.MethodDelete, "/v1/events/management/cleaning/1",
		"", map[string]string{"kind": "cleaning", "id": "1"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.events)

	rec = doRequest(h.DeleteManagementEvent, http.MethodDelete, "/v1/events/management/cleaning/1",
		"", map[string]string{"kind": "cleaning", "id": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListManagementTypes(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(h.ListManagementTypes, http.MethodGet, "/v1/events/management/types", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []string `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"cleaning", "maintenance"}, body.Items)
}

func TestListEventsScopedToOwner(t *testing.T) {
	h, store := newTestHandler(t)
	begin := futureTime()
	store.events = append(store.events,
		model.Event{
			ID: 1, Type: model.EventTypeCleaning, PropertyID: 7, OwnerEmail: testOwner,
			Begin: begin, End: begin.Add(2 * time.Hour),
			Management: &model.ManagementFields{WorkerName: "Maria"},
		},
		model.Event{
			ID: 2, Type: model.EventTypeReservation, PropertyID: 9, OwnerEmail: "someone@else.pt",
			Begin: begin, End: begin.Add(2 * time.Hour),
			Reservation: &model.ReservationFields{ExternalID: 1, Channel: model.ChannelZooking, Status: model.StatusConfirmed},
		},
	)
	store.nextID = 3

	rec := doRequest(h.ListEvents, http.MethodGet, "/v1/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []model.Event `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, int64(1), body.Items[0].ID)
}
