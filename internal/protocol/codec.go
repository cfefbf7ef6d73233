package protocol

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
)

// EncodeTime serializes t as signed 64-bit Unix microseconds. Finer
// precision is dropped.
func EncodeTime(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

// DecodeTime parses an EncodeTime value. The result is in UTC.
func DecodeTime(s string) (time.Time, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrBadArguments, s)
	}
	t := time.UnixMicro(n).UTC()
	if err := domain.CheckModifiedOn(t); err != nil {
		return time.Time{}, fmt.Errorf("protocol: %w", err)
	}
	return t, nil
}

// idSeparator separates ids in a findids payload. Each id is path
// escaped, so ids containing the separator survive.
const idSeparator = "|"

// JoinIDs encodes an id list.
func JoinIDs(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.PathEscape(id)
	}
	return strings.Join(escaped, idSeparator)
}

// SplitIDs decodes a JoinIDs value. The empty string yields no ids.
func SplitIDs(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	ids := strings.Split(s, idSeparator)
	for i, id := range ids {
		plain, err := url.PathUnescape(id)
		if err != nil {
			return nil, fmt.Errorf("%w: id list: %v", ErrBadArguments, err)
		}
		ids[i] = plain
	}
	return ids, nil
}

// EncodeThing builds the plaintext "modifiedOn,base64(data)" carried by
// store requests and getacopy responses.
func EncodeThing(modifiedOn time.Time, data []byte) string {
	return EncodeTime(modifiedOn) + "," + base64.StdEncoding.EncodeToString(data)
}

// DecodeThing parses an EncodeThing value.
func DecodeThing(s string) (time.Time, []byte, error) {
	ts, body, ok := strings.Cut(s, ",")
	if !ok {
		return time.Time{}, nil, fmt.Errorf("%w: thing payload has no timestamp", ErrBadArguments)
	}
	modifiedOn, err := DecodeTime(ts)
	if err != nil {
		return time.Time{}, nil, err
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("%w: thing data is not base64", ErrBadArguments)
	}
	return modifiedOn, data, nil
}
