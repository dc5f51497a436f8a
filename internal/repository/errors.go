// Package repository holds the stores behind seats, bookings and payments:
// MySQL implementations used in production and in-memory implementations
// used for single-node development and tests.  Errors shared by all stores
// are declared here so services can translate them without caring which
// store produced them.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a booking or payment does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with existing state, such
// as initializing a seat map twice or reusing a transaction id.
var ErrConflict = errors.New("conflict")

// isDuplicateKey reports whether err is a MySQL unique key violation.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
