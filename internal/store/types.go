package store

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// QueueTransition describes the fields written when a queue entry changes state.
type QueueTransition struct {
	State          model.QueueState
	NotifiedAt     *time.Time
	ClaimExpiresAt *time.Time
	ResolvedAt     *time.Time
}

func (t QueueTransition) columns() map[string]any {
	cols := map[string]any{"state": t.State}
	if t.NotifiedAt != nil {
		cols["notified_at"] = *t.NotifiedAt
	}
	if t.ClaimExpiresAt != nil {
		cols["claim_expires_at"] = *t.ClaimExpiresAt
	}
	if t.ResolvedAt != nil {
		cols["resolved_at"] = *t.ResolvedAt
	}
	return cols
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// IsUniqueViolation reports whether err is a unique-constraint failure.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsSerializationFailure reports whether err is a transient conflict that
// may succeed if the transaction is retried.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
