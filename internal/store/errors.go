package store

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidTransition reports a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotFound reports an update against a missing row.
	ErrNotFound = errors.New("record not found")
)

const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mapWriteError converts driver-level unique violations into ErrDuplicate.
func mapWriteError(err error) error {
	if isUniqueViolation(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
