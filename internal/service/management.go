package service

import (
	"context"
	"log"
	"time"

	"github.com/PI-PropertEase/CalendarService/internal/metrics"
	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/overlap"
	"github.com/PI-PropertEase/CalendarService/internal/queue"
	"github.com/PI-PropertEase/CalendarService/internal/repository"
)

// ManagementService owns the lifecycle of internally-created events
// (cleanings and maintenances): ownership checks against the property
// directory, overlap admission inside the storing transaction, and
// post-commit notification of the wrappers.
type ManagementService struct {
	store    repository.Store
	dir      repository.Directory
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewManagementService wires the service to its store, directory and bus handle.
func NewManagementService(store repository.Store, dir repository.Directory, notifier Notifier, mx *metrics.Metrics) *ManagementService {
	return &ManagementService{store: store, dir: dir, notifier: notifier, metrics: mx}
}

// ManagementUpdate carries the mutable fields of a management event.  Nil
// pointers leave the stored value untouched, so a caller can move an interval
// without resending the metadata.
type ManagementUpdate struct {
	Begin       *time.Time
	End         *time.Time
	WorkerName  *string
	CompanyName *string
}

// Create stores a new cleaning or maintenance event after verifying that the
// owner controls the property and that the interval is free.  On success
// ev.ID is populated and every wrapper is notified.
func (s *ManagementService) Create(ctx context.Context, ev *model.Event) error {
	if !ev.End.After(ev.Begin) {
		return ErrInvalidInterval
	}
	owns, err := s.dir.ControlsProperty(ctx, ev.OwnerEmail, ev.PropertyID)
	if err != nil {
		return err
	}
	if !owns {
		return ErrPropertyNotOwned
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		spans, err := tx.Spans(ctx, ev.OwnerEmail, ev.PropertyID)
		if err != nil {
			return err
		}
		if overlap.Conflicts(spans, ev.Begin, ev.End, 0) {
			s.metrics.OverlapConflict()
			return ErrOverlap
		}
		return tx.CreateEvent(ctx, ev)
	})
	if err != nil {
		return err
	}

	s.metrics.ManagementEvent("create")
	s.notify(ctx, queue.TypeManagementCreate, ev)
	return nil
}

// Update merges the patch into an existing management event, re-runs the
// overlap check against every other event of the property, and persists the
// result.  The event's own current interval is excluded from the check so
// shrinking or shifting within one's own slot always succeeds.
func (s *ManagementService) Update(ctx context.Context, typ model.EventType, id int64, ownerEmail string, patch ManagementUpdate) (*model.Event, error) {
	intervalChanged := patch.Begin != nil || patch.End != nil

	var updated *model.Event
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.ManagementEventByID(ctx, typ, id)
		if err != nil {
			return err
		}
		if ev.OwnerEmail != ownerEmail {
			// Same response class as a missing row so owners cannot probe
			// other accounts' event ids.
			return repository.ErrEventNotFound
		}
		if patch.Begin != nil {
			ev.Begin = *patch.Begin
		}
		if patch.End != nil {
			ev.End = *patch.End
		}
		if !ev.End.After(ev.Begin) {
			return ErrInvalidInterval
		}
		if ev.Management == nil {
			ev.Management = &model.ManagementFields{}
		}
		if patch.WorkerName != nil {
			ev.Management.WorkerName = *patch.WorkerName
		}
		if patch.CompanyName != nil {
			ev.Management.CompanyName = *patch.CompanyName
		}

		if intervalChanged {
			spans, err := tx.Spans(ctx, ev.OwnerEmail, ev.PropertyID)
			if err != nil {
				return err
			}
			if overlap.Conflicts(spans, ev.Begin, ev.End, ev.ID) {
				s.metrics.OverlapConflict()
				return ErrOverlap
			}
		}
		if err := tx.UpdateManagementEvent(ctx, ev); err != nil {
			return err
		}
		updated = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ManagementEvent("update")
	// The wrappers only track occupancy; a metadata-only change is not
	// their business.
	if intervalChanged {
		s.notify(ctx, queue.TypeManagementUpdate, updated)
	}
	return updated, nil
}

// Delete removes a management event belonging to the owner and broadcasts
// the freed interval.
func (s *ManagementService) Delete(ctx context.Context, typ model.EventType, id int64, ownerEmail string) error {
	var deleted *model.Event
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.ManagementEventByID(ctx, typ, id)
		if err != nil {
			return err
		}
		if ev.OwnerEmail != ownerEmail {
			return repository.ErrEventNotFound
		}
		ok, err := tx.DeleteManagementEvent(ctx, typ, id, ownerEmail)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrEventNotFound
		}
		deleted = ev
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.ManagementEvent("delete")
	s.notify(ctx, queue.TypeManagementDelete, deleted)
	return nil
}

// EventsByOwner lists every calendar entry of the owner.
func (s *ManagementService) EventsByOwner(ctx context.Context, ownerEmail string) ([]model.Event, error) {
	return s.store.EventsByOwner(ctx, ownerEmail)
}

// EventsByOwnerAndType lists the owner's entries of one kind.
func (s *ManagementService) EventsByOwnerAndType(ctx context.Context, ownerEmail string, typ model.EventType) ([]model.Event, error) {
	return s.store.EventsByOwnerAndType(ctx, ownerEmail, typ)
}

func (s *ManagementService) notify(ctx context.Context, msgType queue.MessageType, ev *model.Event) {
	if err := s.notifier.Broadcast(ctx, msgType, queue.NewManagementEventNotification(ev)); err != nil {
		log.Printf("management: broadcast %s for event %d failed: %v", msgType, ev.ID, err)
	}
}
