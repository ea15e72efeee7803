// Package repository defines the storage contracts used by the services
// together with their MySQL implementation.  The sentinel errors below are
// shared by every implementation so that higher layers can distinguish
// failure scenarios without knowing which store is in use.  ErrNotFound
// means no (non-deleted) row matched; ErrDuplicate means a unique index
// rejected the write.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist or has
// been soft deleted.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates a uniqueness constraint
// (email, slug, transaction id, booking↔payment, booking↔review,
// user↔tour wishlist pair, conversation pair).
var ErrDuplicate = errors.New("duplicate")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}

// expectOne converts a zero rows-affected result into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
