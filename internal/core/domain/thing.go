package domain

import (
	"errors"
	"fmt"
	"time"
)

// Thing is one durable record in a storage.
type Thing struct {
	StorageKey string
	ID         string
	Data       []byte
	ModifiedOn time.Time
}

// Modification times are kept as signed Unix microseconds, limited to
// years 1 through 9999.
var (
	MinModifiedOn = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxModifiedOn = time.Date(9999, time.December, 31, 23, 59, 59, 999999000, time.UTC)
)

// ErrModifiedOnOutOfRange is returned for a modification time outside
// [MinModifiedOn, MaxModifiedOn].
var ErrModifiedOnOutOfRange = errors.New("modification time out of range")

// CheckModifiedOn reports whether t can be stored.
func CheckModifiedOn(t time.Time) error {
	if t.Before(MinModifiedOn) || t.After(MaxModifiedOn) {
		return fmt.Errorf("%w: %s", ErrModifiedOnOutOfRange, t.UTC().Format(time.RFC3339Nano))
	}
	return nil
}
