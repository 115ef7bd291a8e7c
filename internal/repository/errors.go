// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios without
// depending on driver errors. For example, ErrConflict signals that a
// write was rejected by a uniqueness or conditional-update guard (e.g.
// a second active booking starting at the same instant for a trainer),
// while ErrNotFound replaces sql.ErrNoRows at the package boundary.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row addressed by id (and tenant scope)
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update cannot be
// performed because of conflicting state: a duplicate key, a violated
// CHECK constraint or a conditional update that matched no row.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers mapped to ErrConflict.
const (
	mysqlDuplicateEntry  = 1062
	mysqlCheckConstraint = 3819
)

// IsDuplicate reports whether err is a MySQL duplicate-key error.
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// mapWriteErr converts constraint violations into ErrConflict and
// leaves every other error untouched.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && (me.Number == mysqlDuplicateEntry || me.Number == mysqlCheckConstraint) {
		return ErrConflict
	}
	return err
}

// mapReadErr converts sql.ErrNoRows into ErrNotFound.
func mapReadErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
