package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/storage/atrest"
)

const recordHeaderSize = 8

// thingAAD binds a stored payload to its address.
func thingAAD(storageKey, thingID string) []byte {
	return []byte(storageKey + scopeSeparator + thingID)
}

// encodeRecord builds a whole-thing record: modifiedOn (Unix
// microseconds, big endian) followed by data, passed through the
// transform.
func encodeRecord(t *atrest.Transform, storageKey, thingID string, data []byte, modifiedOn time.Time) ([]byte, error) {
	if err := domain.CheckModifiedOn(modifiedOn); err != nil {
		return nil, err
	}
	buf := make([]byte, recordHeaderSize+len(data))
	binary.BigEndian.PutUint64(buf, uint64(modifiedOn.UnixMicro()))
	copy(buf[recordHeaderSize:], data)
	return t.Encode(buf, thingAAD(storageKey, thingID))
}

func decodeRecord(t *atrest.Transform, storageKey, thingID string, stored []byte) (time.Time, []byte, error) {
	buf, err := t.Decode(stored, thingAAD(storageKey, thingID))
	if err != nil {
		return time.Time{}, nil, err
	}
	if len(buf) < recordHeaderSize {
		return time.Time{}, nil, fmt.Errorf("%w: record too short", atrest.ErrCorrupt)
	}
	modifiedOn := time.UnixMicro(int64(binary.BigEndian.Uint64(buf))).UTC()
	return modifiedOn, buf[recordHeaderSize:], nil
}
