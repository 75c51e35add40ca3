package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Sentinel errors returned by the atomic check-and-insert operations.
var (
	ErrCapacityExceeded    = errors.New("offering has no free seats")
	ErrDuplicateEnrollment = errors.New("participant already has an active enrollment")
	ErrOfferingInactive    = errors.New("offering is inactive")
	ErrRosterExists        = errors.New("roster already exists for date")
)

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// runInTx executes fn inside a transaction, retrying once when PostgreSQL aborts it
// with a serialization failure or deadlock.
func runInTx(ctx context.Context, db txBeginner, fn func(tx *sqlx.Tx) error) error {
	err := attemptTx(ctx, db, fn)
	if isRetryable(err) {
		err = attemptTx(ctx, db, fn)
	}
	return err
}

func attemptTx(ctx context.Context, db txBeginner, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
