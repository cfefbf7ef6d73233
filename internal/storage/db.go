package storage

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
)

// Db is the durable thing store.
//
// storageKey arguments are "repositoryId/storageId". scope arguments may
// also be a bare repositoryId, covering every storage in the repository.
type Db interface {
	// StoreThing creates or replaces a thing.
	StoreThing(ctx context.Context, storageKey, thingID string, data []byte, modifiedOn time.Time) error

	// ThingExists reports whether a thing exists.
	ThingExists(ctx context.Context, storageKey, thingID string) (bool, error)

	// GetThingModifiedOn returns the modification time recorded by the
	// last store. Fails with ErrThingNotFound.
	GetThingModifiedOn(ctx context.Context, storageKey, thingID string) (time.Time, error)

	// GetThingCopy returns the thing's data. Fails with ErrThingNotFound.
	GetThingCopy(ctx context.Context, storageKey, thingID string) ([]byte, error)

	// DiscardThing removes a thing. Removing an absent thing succeeds.
	DiscardThing(ctx context.Context, storageKey, thingID string) error

	// FindThingIDs lists things in exactly storageKey whose id matches
	// pattern.
	FindThingIDs(ctx context.Context, storageKey, pattern string) ([]IDInDb, error)

	// DiscardAll removes every thing under scope.
	DiscardAll(ctx context.Context, scope string) error

	// FindIDs lists matching things under scope, plus one storage entry
	// for each storage holding at least one of them.
	FindIDs(ctx context.Context, scope, pattern string) ([]IDInDb, error)

	// Close releases the backend's resources.
	Close() error
}

// IDKind tells storage entries from thing entries in FindIDs results.
type IDKind int

const (
	KindStorage IDKind = iota
	KindThing
)

func (k IDKind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindThing:
		return "thing"
	default:
		return "unknown"
	}
}

// IDInDb is one FindIDs result. For things StorageKey is the full
// "repositoryId/storageId"; for storages it is the repositoryId and ID is
// the storage id.
type IDInDb struct {
	StorageKey string
	Kind       IDKind
	ID         string
}

// Errors returned by backends.
var (
	// ErrThingNotFound reports a missing thing. It is a *domain.DomainError
	// of kind ThingNotFound, so callers can match either.
	ErrThingNotFound = domain.ErrThingNotFound

	ErrInvalidKey     = errors.New("storage: invalid key")
	ErrInvalidPattern = errors.New("storage: invalid pattern")
	ErrClosed         = errors.New("storage: closed")
)

func thingNotFound(storageKey, thingID string) error {
	return ErrThingNotFound.WithDetails(storageKey + "/" + thingID)
}

// ThingIDs extracts the ids of thing entries.
func ThingIDs(ids []IDInDb) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.Kind == KindThing {
			out = append(out, id.ID)
		}
	}
	return out
}
