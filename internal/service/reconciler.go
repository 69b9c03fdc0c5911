package service

import (
	"context"
	"fmt"
	"log"

	"github.com/PI-PropertEase/CalendarService/internal/metrics"
	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/overlap"
	"github.com/PI-PropertEase/CalendarService/internal/queue"
	"github.com/PI-PropertEase/CalendarService/internal/repository"
)

// Reconciler folds reservation batches reported by the booking-channel
// wrappers into the calendar.  Each batch runs inside one transaction, in
// array order, so later records see the occupancy created by earlier ones;
// the resulting notifications are held in an outbox and only published after
// the transaction commits.
type Reconciler struct {
	store    repository.Store
	dir      repository.Directory
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewReconciler wires the reconciler to its store, directory and bus handle.
func NewReconciler(store repository.Store, dir repository.Directory, notifier Notifier, mx *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, dir: dir, notifier: notifier, metrics: mx}
}

// outboundMessage is one deferred notification.  A nil channel means
// broadcast to every wrapper.
type outboundMessage struct {
	channel model.Channel
	msgType queue.MessageType
	body    any
}

// ImportBatch reconciles one RESERVATION_IMPORT batch from the named
// channel.  Records are processed strictly in the order the wrapper sent
// them; an invalid record is logged and skipped without failing the batch,
// while a storage error aborts and rolls back the whole batch so the message
// can be redelivered.
func (r *Reconciler) ImportBatch(ctx context.Context, ch model.Channel, records []queue.ReservationRecord) error {
	var outbox []outboundMessage

	err := r.store.InTx(ctx, func(tx repository.Tx) error {
		outbox = outbox[:0]
		for i := range records {
			rec := &records[i]
			if err := validateRecord(rec); err != nil {
				log.Printf("reconciler: %s batch record %d skipped: %v", ch, i, err)
				r.metrics.ReservationImported("skipped")
				continue
			}
			status := model.ReservationStatus(rec.ReservationStatus)
			existing, err := tx.ReservationByChannelID(ctx, ch, rec.ExternalID)
			if err != nil {
				return err
			}

			var msgs []outboundMessage
			if existing == nil {
				msgs, err = r.admitNew(ctx, tx, ch, rec, status)
			} else {
				msgs, err = r.applyKnown(ctx, tx, existing, status)
			}
			if err != nil {
				return err
			}
			outbox = append(outbox, msgs...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.flush(ctx, outbox)
	return nil
}

// admitNew handles a (channel, external_id) pair seen for the first time.
// A canceled report is stored as a canceled placeholder so redeliveries of
// the same cancellation stay no-ops; a live report runs the overlap check
// and either takes the interval or is stored canceled with a directed
// overlap notice back to the reporting wrapper.
func (r *Reconciler) admitNew(ctx context.Context, tx repository.Tx, ch model.Channel, rec *queue.ReservationRecord, status model.ReservationStatus) ([]outboundMessage, error) {
	ev := eventFromRecord(ch, rec, status)

	if status == model.StatusCanceled {
		if err := tx.CreateEvent(ctx, ev); err != nil {
			return nil, err
		}
		r.metrics.ReservationImported("created_canceled")
		return nil, nil
	}

	spans, err := tx.Spans(ctx, ev.OwnerEmail, ev.PropertyID)
	if err != nil {
		return nil, err
	}
	if overlap.Conflicts(spans, ev.Begin, ev.End, 0) {
		ev.Reservation.Status = model.StatusCanceled
		if err := tx.CreateEvent(ctx, ev); err != nil {
			return nil, err
		}
		r.metrics.OverlapConflict()
		r.metrics.ReservationImported("overlap_rejected")
		return []outboundMessage{{
			channel: ch,
			msgType: queue.TypeReservationOverlap,
			body:    queue.NewReservationNotification(ev),
		}}, nil
	}

	if status == model.StatusPending {
		ev.Reservation.Status = model.StatusConfirmed
	}
	if err := tx.CreateEvent(ctx, ev); err != nil {
		return nil, err
	}
	r.metrics.ReservationImported("created_confirmed")

	// A pending reservation was confirmed on the wrapper's behalf, so every
	// wrapper including the reporter needs to hear about the new occupancy.
	if status == model.StatusPending {
		return []outboundMessage{{
			msgType: queue.TypeReservationConfirm,
			body:    queue.NewReservationNotification(ev),
		}}, nil
	}
	return nil, nil
}

// applyKnown handles a record whose (channel, external_id) pair already has
// a row.  Only a cancellation changes anything; re-imports of a live or
// already-canceled reservation are no-ops.
func (r *Reconciler) applyKnown(ctx context.Context, tx repository.Tx, existing *model.Event, status model.ReservationStatus) ([]outboundMessage, error) {
	if status != model.StatusCanceled || existing.Reservation.Status == model.StatusCanceled {
		r.metrics.ReservationImported("noop")
		return nil, nil
	}
	if err := tx.SetReservationStatus(ctx, existing.ID, model.StatusCanceled); err != nil {
		return nil, err
	}
	existing.Reservation.Status = model.StatusCanceled
	r.metrics.ReservationImported("status_canceled")
	return []outboundMessage{{
		msgType: queue.TypeReservationCancel,
		body:    queue.NewReservationNotification(existing),
	}}, nil
}

// PublishConfirmed answers a wrapper's request to resend the confirmed
// reservations of the listed properties.  Everything is read in one
// transaction for a consistent snapshot, then sent directed to the
// requesting channel only.
func (r *Reconciler) PublishConfirmed(ctx context.Context, ch model.Channel, propertyIDs []int64) error {
	var outbox []outboundMessage
	err := r.store.InTx(ctx, func(tx repository.Tx) error {
		outbox = outbox[:0]
		for _, pid := range propertyIDs {
			events, err := tx.ConfirmedReservations(ctx, pid)
			if err != nil {
				return err
			}
			for i := range events {
				outbox = append(outbox, outboundMessage{
					channel: ch,
					msgType: queue.TypeReservationConfirm,
					body:    queue.NewReservationNotification(&events[i]),
				})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.flush(ctx, outbox)
	return nil
}

// RecordMapping appends one owner -> property association from an
// EMAIL_PROPERTY_ID_MAPPING message.
func (r *Reconciler) RecordMapping(ctx context.Context, ownerEmail string, propertyID int64) error {
	if ownerEmail == "" || propertyID <= 0 {
		return fmt.Errorf("invalid mapping %q -> %d", ownerEmail, propertyID)
	}
	return r.dir.AppendMapping(ctx, ownerEmail, propertyID)
}

func (r *Reconciler) flush(ctx context.Context, outbox []outboundMessage) {
	for _, msg := range outbox {
		var err error
		if msg.channel == "" {
			err = r.notifier.Broadcast(ctx, msg.msgType, msg.body)
		} else {
			err = r.notifier.ToChannel(ctx, msg.channel, msg.msgType, msg.body)
		}
		if err != nil {
			log.Printf("reconciler: publish %s failed: %v", msg.msgType, err)
		}
	}
}

func validateRecord(rec *queue.ReservationRecord) error {
	switch {
	case rec.ExternalID <= 0:
		return fmt.Errorf("missing _id")
	case rec.PropertyID <= 0:
		return fmt.Errorf("missing property_id")
	case rec.OwnerEmail == "":
		return fmt.Errorf("missing owner_email")
	case !rec.EndDatetime.After(rec.BeginDatetime.Time):
		return fmt.Errorf("begin_datetime %s not before end_datetime %s", rec.BeginDatetime.Time, rec.EndDatetime.Time)
	}
	switch model.ReservationStatus(rec.ReservationStatus) {
	case model.StatusPending, model.StatusConfirmed, model.StatusCanceled:
		return nil
	default:
		return fmt.Errorf("unknown reservation_status %q", rec.ReservationStatus)
	}
}

func eventFromRecord(ch model.Channel, rec *queue.ReservationRecord, status model.ReservationStatus) *model.Event {
	return &model.Event{
		Type:       model.EventTypeReservation,
		PropertyID: rec.PropertyID,
		OwnerEmail: rec.OwnerEmail,
		Begin:      rec.BeginDatetime.Time,
		End:        rec.EndDatetime.Time,
		Reservation: &model.ReservationFields{
			ExternalID:  rec.ExternalID,
			Channel:     ch,
			Status:      status,
			ClientEmail: rec.ClientEmail,
			ClientName:  rec.ClientName,
			ClientPhone: rec.ClientPhone,
			Cost:        rec.Cost,
		},
	}
}
