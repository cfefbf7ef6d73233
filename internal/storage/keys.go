package storage

import (
	"fmt"
	"net/url"
	"strings"
)

const scopeSeparator = "/"

// MaxSegmentLength bounds the escaped length of a repository id, storage
// id or thing id, so that every backend accepts the same keys. It is the
// common file name limit.
const MaxSegmentLength = 255

// escape is the file system form of a key segment.
func escape(segment string) string {
	return url.PathEscape(segment)
}

// ScopeKey joins a repository id and a storage id into a storage key.
func ScopeKey(repositoryID, storageID string) string {
	return repositoryID + scopeSeparator + storageID
}

// SplitScope splits a scope into its repository id and, if present, its
// storage id.
func SplitScope(scope string) (repositoryID, storageID string, err error) {
	parts := strings.Split(scope, scopeSeparator)
	switch len(parts) {
	case 1:
		repositoryID = parts[0]
	case 2:
		repositoryID, storageID = parts[0], parts[1]
		if err := validSegment("storage id", storageID); err != nil {
			return "", "", err
		}
	default:
		return "", "", fmt.Errorf("%w: scope %q has too many segments", ErrInvalidKey, scope)
	}
	if err := validSegment("repository id", repositoryID); err != nil {
		return "", "", err
	}
	return repositoryID, storageID, nil
}

// ValidateStorageKey checks that key is "repositoryId/storageId".
func ValidateStorageKey(key string) error {
	_, storageID, err := SplitScope(key)
	if err != nil {
		return err
	}
	if storageID == "" {
		return fmt.Errorf("%w: storage key %q has no storage id", ErrInvalidKey, key)
	}
	return nil
}

// ValidateKey checks a full thing address.
func ValidateKey(storageKey, thingID string) error {
	if err := ValidateStorageKey(storageKey); err != nil {
		return err
	}
	return validSegment("thing id", thingID)
}

func validSegment(what, s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidKey, what)
	case s == "." || s == "..":
		return fmt.Errorf("%w: %s %q", ErrInvalidKey, what, s)
	case strings.ContainsAny(s, "/\x00"):
		return fmt.Errorf("%w: %s %q contains a forbidden character", ErrInvalidKey, what, s)
	case len(escape(s)) > MaxSegmentLength:
		return fmt.Errorf("%w: %s is longer than %d bytes once escaped", ErrInvalidKey, what, MaxSegmentLength)
	}
	return nil
}

// inScope reports whether storageKey lies under scope.
func inScope(storageKey, scope string) bool {
	return storageKey == scope || strings.HasPrefix(storageKey, scope+scopeSeparator)
}
