// Package handler exposes the calendar over HTTP.  Handlers translate
// between the REST surface and the service layer: binding and validation on
// the way in, error-to-status mapping on the way out.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/PI-PropertEase/CalendarService/internal/middleware"
	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/repository"
	"github.com/PI-PropertEase/CalendarService/internal/service"
)

// managementKinds maps the :kind route parameter onto the stored event type.
// The table is the closed set of creatable kinds; reservations deliberately
// have no entry because they only ever arrive through the bus.
var managementKinds = map[string]model.EventType{
	"cleaning":    model.EventTypeCleaning,
	"maintenance": model.EventTypeMaintenance,
}

// EventHandler serves the /v1/events routes.
type EventHandler struct {
	svc      *service.ManagementService
	validate *validator.Validate
}

// NewEventHandler builds the handler around the management service.
func NewEventHandler(svc *service.ManagementService) *EventHandler {
	return &EventHandler{svc: svc, validate: validator.New()}
}

// managementEventRequest is the create payload.  WorkerName applies to
// cleanings and CompanyName to maintenances; which one is required depends
// on the :kind parameter, so that check lives in the handler rather than in
// a tag.
type managementEventRequest struct {
	PropertyID  int64     `json:"property_id" validate:"required,gt=0"`
	Begin       time.Time `json:"begin_datetime" validate:"required"`
	End         time.Time `json:"end_datetime" validate:"required"`
	WorkerName  string    `json:"worker_name"`
	CompanyName string    `json:"company_name"`
}

// managementEventPatch is the update payload; absent fields keep their
// stored value.
type managementEventPatch struct {
	Begin       *time.Time `json:"begin_datetime"`
	End         *time.Time `json:"end_datetime"`
	WorkerName  *string    `json:"worker_name"`
	CompanyName *string    `json:"company_name"`
}

// ListEvents handles GET /v1/events and returns every calendar entry of the
// authenticated owner, reservations included.
func (h *EventHandler) ListEvents(c echo.Context) error {
	events, err := h.svc.EventsByOwner(c.Request().Context(), middleware.OwnerEmail(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// ListReservations handles GET /v1/events/reservation.
func (h *EventHandler) ListReservations(c echo.Context) error {
	events, err := h.svc.EventsByOwnerAndType(c.Request().Context(), middleware.OwnerEmail(c), model.EventTypeReservation)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// ListManagementTypes handles GET /v1/events/management/types and returns
// the kinds accepted by the management routes.
func (h *EventHandler) ListManagementTypes(c echo.Context) error {
	kinds := make([]string, 0, len(managementKinds))
	for _, typ := range model.ManagementEventTypes {
		kinds = append(kinds, string(typ))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": kinds})
}

// ListManagementEvents handles GET /v1/events/management/:kind.
func (h *EventHandler) ListManagementEvents(c echo.Context) error {
	typ, ok := managementKinds[c.Param("kind")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown event kind"})
	}
	events, err := h.svc.EventsByOwnerAndType(c.Request().Context(), middleware.OwnerEmail(c), typ)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// CreateManagementEvent handles POST /v1/events/management/:kind.
func (h *EventHandler) CreateManagementEvent(c echo.Context) error {
	typ, ok := managementKinds[c.Param("kind")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown event kind"})
	}

	var body managementEventRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !body.End.After(body.Begin) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "begin_datetime must be before end_datetime"})
	}
	if body.Begin.Before(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "begin_datetime must not be in the past"})
	}
	if typ == model.EventTypeCleaning && body.WorkerName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "worker_name is required for cleaning events"})
	}
	if typ == model.EventTypeMaintenance && body.CompanyName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "company_name is required for maintenance events"})
	}

	ev := &model.Event{
		Type:       typ,
		PropertyID: body.PropertyID,
		OwnerEmail: middleware.OwnerEmail(c),
		Begin:      body.Begin.UTC(),
		End:        body.End.UTC(),
		Management: &model.ManagementFields{
			WorkerName:  body.WorkerName,
			CompanyName: body.CompanyName,
		},
	}
	if err := h.svc.Create(c.Request().Context(), ev); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// UpdateManagementEvent handles PUT /v1/events/management/:kind/:id.
func (h *EventHandler) UpdateManagementEvent(c echo.Context) error {
	typ, ok := managementKinds[c.Param("kind")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown event kind"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	var body managementEventPatch
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Begin != nil && body.Begin.Before(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "begin_datetime must not be in the past"})
	}

	patch := service.ManagementUpdate{
		WorkerName:  body.WorkerName,
		CompanyName: body.CompanyName,
	}
	if body.Begin != nil {
		b := body.Begin.UTC()
		patch.Begin = &b
	}
	if body.End != nil {
		e := body.End.UTC()
		patch.End = &e
	}

	updated, err := h.svc.Update(c.Request().Context(), typ, id, middleware.OwnerEmail(c), patch)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteManagementEvent handles DELETE /v1/events/management/:kind/:id.
func (h *EventHandler) DeleteManagementEvent(c echo.Context) error {
	typ, ok := managementKinds[c.Param("kind")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown event kind"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	if err := h.svc.Delete(c.Request().Context(), typ, id, middleware.OwnerEmail(c)); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidInterval):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPropertyNotOwned):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
	case errors.Is(err, repository.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, service.ErrOverlap):
		return c.JSON(http.StatusConflict, echo.Map{"error": "overlapping events"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
