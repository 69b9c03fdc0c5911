package repository

import (
	"context"
	"database/sql"
	"errors"
)

// OwnerDirectoryRepo reads and appends the owner_email -> property_id
// mapping.  The directory is maintained by an external process; this service
// consults it to authorize management event creation and grows it when an
// EMAIL_PROPERTY_ID_MAPPING message arrives.  The set is append-only:
// mappings are never removed here.
type OwnerDirectoryRepo struct {
	db *sql.DB
}

// NewOwnerDirectoryRepo returns a new OwnerDirectoryRepo bound to the given database.
func NewOwnerDirectoryRepo(db *sql.DB) *OwnerDirectoryRepo { return &OwnerDirectoryRepo{db: db} }

// ControlsProperty reports whether the owner controls the given property.
func (r *OwnerDirectoryRepo) ControlsProperty(ctx context.Context, ownerEmail string, propertyID int64) (bool, error) {
	const q = `SELECT 1 FROM property_owners WHERE owner_email = ? AND property_id = ?`
	var one int
	err := r.db.QueryRowContext(ctx, q, ownerEmail, propertyID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AppendMapping adds a property to an owner's set.  Replaying the same
// mapping message is a no-op thanks to the unique (owner_email, property_id)
// pair.
func (r *OwnerDirectoryRepo) AppendMapping(ctx context.Context, ownerEmail string, propertyID int64) error {
	const q = `INSERT IGNORE INTO property_owners (owner_email, property_id) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, q, ownerEmail, propertyID)
	return err
}
