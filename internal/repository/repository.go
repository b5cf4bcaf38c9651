// Package repository implements persistence for display-number slots and the
// orders that hold them. The Postgres repositories use pgx directly (no ORM);
// the in-memory repositories honour the same contracts for local runs and tests.
package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrSlotTaken is returned when a new slot collides with an existing
// (restaurant, display number) pair. Another allocator won the race.
var ErrSlotTaken = errors.New("display number slot already exists")

// ErrNoAvailableSlot is returned when a restaurant has no unlocked available slot.
var ErrNoAvailableSlot = errors.New("no available display number slot")

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching q literally anywhere.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}
