package store

import (
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound indicates a missing record.
var ErrNotFound = errors.New("record not found")

// mapErr turns pgx.ErrNoRows into ErrNotFound.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// parseID validates a numeric record id. Anything else cannot exist.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrNotFound
	}
	return n, nil
}
