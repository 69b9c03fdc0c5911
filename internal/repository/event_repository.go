package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/PI-PropertEase/CalendarService/internal/model"
	"github.com/PI-PropertEase/CalendarService/internal/overlap"
)

// mysqlDuplicateEntry is the server error number MySQL raises when an insert
// violates a unique key.
const mysqlDuplicateEntry = 1062

// eventColumns is the scan order shared by every query returning full rows.
const eventColumns = `id, type, property_id, owner_email, begin_datetime, end_datetime,
       external_id, service, reservation_status, client_email, client_name, client_phone, cost,
       worker_name, company_name`

// EventRepo persists every calendar event variant in the single
// interval-indexed events table.  The variant payload lives in nullable
// columns attached to the common (property, owner, interval) triple, so the
// overlap query is one range scan instead of a union over per-type tables.
// All timestamps are stored in UTC.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle for callers that manage their own scope.
func (r *EventRepo) DB() *sql.DB { return r.db }

// InTx runs fn inside a transaction.  A nil return from fn commits;
// any error (or panic) rolls back.
func (r *EventRepo) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&eventTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// EventsByOwner returns every event of every type belonging to the owner,
// ordered by begin time.
func (r *EventRepo) EventsByOwner(ctx context.Context, ownerEmail string) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE owner_email = ? ORDER BY begin_datetime`
	rows, err := r.db.QueryContext(ctx, q, ownerEmail)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// EventsByOwnerAndType returns the owner's events of a single kind.
func (r *EventRepo) EventsByOwnerAndType(ctx context.Context, ownerEmail string, typ model.EventType) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE owner_email = ? AND type = ? ORDER BY begin_datetime`
	rows, err := r.db.QueryContext(ctx, q, ownerEmail, string(typ))
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// eventTx implements Tx over one *sql.Tx.
type eventTx struct {
	tx *sql.Tx
}

func (t *eventTx) CreateEvent(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
        (type, property_id, owner_email, begin_datetime, end_datetime,
         external_id, service, reservation_status, client_email, client_name, client_phone, cost,
         worker_name, company_name)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var (
		externalID, service, status          any
		clientEmail, clientName, clientPhone any
		cost                                 any
		workerName, companyName              any
	)
	if res := ev.Reservation; res != nil {
		externalID = res.ExternalID
		service = string(res.Channel)
		status = string(res.Status)
		clientEmail = res.ClientEmail
		clientName = res.ClientName
		clientPhone = res.ClientPhone
		cost = res.Cost
	}
	if mgmt := ev.Management; mgmt != nil {
		if mgmt.WorkerName != "" {
			workerName = mgmt.WorkerName
		}
		if mgmt.CompanyName != "" {
			companyName = mgmt.CompanyName
		}
	}

	result, err := t.tx.ExecContext(ctx, q,
		string(ev.Type), ev.PropertyID, ev.OwnerEmail, ev.Begin.UTC(), ev.End.UTC(),
		externalID, service, status, clientEmail, clientName, clientPhone, cost,
		workerName, companyName,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrDuplicateReservation
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = id
	return nil
}

func (t *eventTx) ManagementEventByID(ctx context.Context, typ model.EventType, id int64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ? AND type = ?`
	ev, err := scanEvent(t.tx.QueryRowContext(ctx, q, id, string(typ)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (t *eventTx) UpdateManagementEvent(ctx context.Context, ev *model.Event) error {
	const q = `UPDATE events
               SET begin_datetime = ?, end_datetime = ?, worker_name = ?, company_name = ?
               WHERE id = ? AND type = ?`
	var workerName, companyName any
	if ev.Management != nil {
		if ev.Management.WorkerName != "" {
			workerName = ev.Management.WorkerName
		}
		if ev.Management.CompanyName != "" {
			companyName = ev.Management.CompanyName
		}
	}
	// RowsAffected is not checked: the caller loaded the row in this same
	// transaction, and MySQL reports 0 for updates that change nothing.
	_, err := t.tx.ExecContext(ctx, q, ev.Begin.UTC(), ev.End.UTC(), workerName, companyName, ev.ID, string(ev.Type))
	return err
}

func (t *eventTx) DeleteManagementEvent(ctx context.Context, typ model.EventType, id int64, ownerEmail string) (bool, error) {
	const q = `DELETE FROM events WHERE id = ? AND type = ? AND owner_email = ?`
	res, err := t.tx.ExecContext(ctx, q, id, string(typ), ownerEmail)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *eventTx) Spans(ctx context.Context, ownerEmail string, propertyID int64) ([]overlap.Span, error) {
	// Canceled reservations keep their row for deduplication but no longer
	// occupy the interval.
	const q = `SELECT id, begin_datetime, end_datetime FROM events
               WHERE owner_email = ? AND property_id = ?
                 AND (reservation_status IS NULL OR reservation_status <> 'canceled')`
	rows, err := t.tx.QueryContext(ctx, q, ownerEmail, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var spans []overlap.Span
	for rows.Next() {
		var s overlap.Span
		if err := rows.Scan(&s.ID, &s.Begin, &s.End); err != nil {
			return nil, err
		}
		spans = append(spans, s)
	}
	return spans, rows.Err()
}

func (t *eventTx) ReservationByChannelID(ctx context.Context, ch model.Channel, externalID int64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events
          WHERE type = 'reservation' AND service = ? AND external_id = ?`
	ev, err := scanEvent(t.tx.QueryRowContext(ctx, q, string(ch), externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (t *eventTx) SetReservationStatus(ctx context.Context, id int64, st model.ReservationStatus) error {
	const q = `UPDATE events SET reservation_status = ? WHERE id = ? AND type = 'reservation'`
	_, err := t.tx.ExecContext(ctx, q, string(st), id)
	return err
}

func (t *eventTx) ConfirmedReservations(ctx context.Context, propertyID int64) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events
          WHERE type = 'reservation' AND property_id = ? AND reservation_status = 'confirmed'
          ORDER BY begin_datetime`
	rows, err := t.tx.QueryContext(ctx, q, propertyID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		ev                                   model.Event
		typ                                  string
		externalID                           sql.NullInt64
		service, status                      sql.NullString
		clientEmail, clientName, clientPhone sql.NullString
		cost                                 sql.NullFloat64
		workerName, companyName              sql.NullString
	)
	if err := row.Scan(
		&ev.ID, &typ, &ev.PropertyID, &ev.OwnerEmail, &ev.Begin, &ev.End,
		&externalID, &service, &status, &clientEmail, &clientName, &clientPhone, &cost,
		&workerName, &companyName,
	); err != nil {
		return nil, err
	}
	ev.Type = model.EventType(typ)
	switch {
	case ev.Type == model.EventTypeReservation:
		ev.Reservation = &model.ReservationFields{
			ExternalID:  externalID.Int64,
			Channel:     model.Channel(service.String),
			Status:      model.ReservationStatus(status.String),
			ClientEmail: clientEmail.String,
			ClientName:  clientName.String,
			ClientPhone: clientPhone.String,
			Cost:        cost.Float64,
		}
	case ev.Type.IsManagement():
		ev.Management = &model.ManagementFields{
			WorkerName:  workerName.String,
			CompanyName: companyName.String,
		}
	}
	ev.Begin = ev.Begin.UTC()
	ev.End = ev.End.UTC()
	return &ev, nil
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
