// Package storagetest is a conformance suite for storage.Db
// implementations.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/storage"
)

// Factory returns a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) storage.Db

var (
	t0 = time.UnixMicro(1700000000123456).UTC()
	t1 = t0.Add(90 * time.Second)
)

// Run runs every conformance test against backends built by newDb.
func Run(t *testing.T, newDb Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, db storage.Db)
	}{
		{"StoreAndGet", testStoreAndGet},
		{"Overwrite", testOverwrite},
		{"NotFound", testNotFound},
		{"Discard", testDiscard},
		{"EscapedIDs", testEscapedIDs},
		{"InvalidKeys", testInvalidKeys},
		{"LongIDs", testLongIDs},
		{"ModifiedOnRange", testModifiedOnRange},
		{"FindThingIDs", testFindThingIDs},
		{"FindIDs", testFindIDs},
		{"DiscardAll", testDiscardAll},
		{"ConcurrentStores", testConcurrentStores},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newDb(t)
			defer db.Close()
			tt.fn(t, db)
		})
	}

	t.Run("Closed", func(t *testing.T) {
		db := newDb(t)
		testClosed(t, db)
	})
}

func mustStore(t *testing.T, db storage.Db, storageKey, thingID, data string, modifiedOn time.Time) {
	t.Helper()
	if err := db.StoreThing(context.Background(), storageKey, thingID, []byte(data), modifiedOn); err != nil {
		t.Fatalf("StoreThing(%q, %q) error = %v", storageKey, thingID, err)
	}
}

func testStoreAndGet(t *testing.T, db storage.Db) {
	ctx := context.Background()
	mustStore(t, db, "r1/s1", "thing", "hello", t0)

	got, err := db.GetThingCopy(ctx, "r1/s1", "thing")
	if err != nil {
		t.Fatalf("GetThingCopy() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("GetThingCopy() = %q, want %q", got, "hello")
	}

	modifiedOn, err := db.GetThingModifiedOn(ctx, "r1/s1", "thing")
	if err != nil {
		t.Fatalf("GetThingModifiedOn() error = %v", err)
	}
	if !modifiedOn.Equal(t0) {
		t.Errorf("GetThingModifiedOn() = %v, want %v", modifiedOn, t0)
	}

	exists, err := db.ThingExists(ctx, "r1/s1", "thing")
	if err != nil || !exists {
		t.Errorf("ThingExists() = %v, %v, want true, nil", exists, err)
	}

	mustStore(t, db, "r1/s1", "empty", "", t0)
	got, err = db.GetThingCopy(ctx, "r1/s1", "empty")
	if err != nil || len(got) != 0 {
		t.Errorf("GetThingCopy(empty) = %q, %v, want empty, nil", got, err)
	}

	blob := bytes.Repeat([]byte{0, 1, 2, 0xff}, 64<<10)
	if err := db.StoreThing(ctx, "r1/s1", "blob", blob, t0); err != nil {
		t.Fatalf("StoreThing(blob) error = %v", err)
	}
	got, err = db.GetThingCopy(ctx, "r1/s1", "blob")
	if err != nil || !bytes.Equal(got, blob) {
		t.Errorf("GetThingCopy(blob) mismatch, err = %v", err)
	}
}

func testOverwrite(t *testing.T, db storage.Db) {
	ctx := context.Background()
	mustStore(t, db, "r1/s1", "thing", "first", t0)
	mustStore(t, db, "r1/s1", "thing", "second", t1)

	got, err := db.GetThingCopy(ctx, "r1/s1", "thing")
	if err != nil || string(got) != "second" {
		t.Errorf("GetThingCopy() = %q, %v, want %q", got, err, "second")
	}
	modifiedOn, err := db.GetThingModifiedOn(ctx, "r1/s1", "thing")
	if err != nil || !modifiedOn.Equal(t1) {
		t.Errorf("GetThingModifiedOn() = %v, %v, want %v", modifiedOn, err, t1)
	}

	ids, err := db.FindThingIDs(ctx, "r1/s1", "")
	if err != nil || len(ids) != 1 {
		t.Errorf("FindThingIDs() = %v, %v, want one entry", ids, err)
	}
}

func testNotFound(t *testing.T, db storage.Db) {
	ctx := context.Background()
	mustStore(t, db, "r1/s1", "present", "x", t0)

	cases := []struct{ storageKey, thingID string }{
		{"r1/s1", "absent"},
		{"r1/other", "present"},
		{"nowhere/s1", "present"},
	}
	for _, c := range cases {
		if _, err := db.GetThingCopy(ctx, c.storageKey, c.thingID); !errors.Is(err, storage.ErrThingNotFound) {
			t.Errorf("GetThingCopy(%q, %q) error = %v, want ErrThingNotFound", c.storageKey, c.thingID, err)
		}
		_, err := db.GetThingModifiedOn(ctx, c.storageKey, c.thingID)
		if got := domain.KindOf(err, domain.KindNone); got != domain.KindThingNotFound {
			t.Errorf("GetThingModifiedOn(%q, %q) kind = %v, want %v", c.storageKey, c.thingID, got, domain.KindThingNotFound)
		}
		exists, err := db.ThingExists(ctx, c.storageKey, c.thingID)
		if err != nil || exists {
			t.Errorf("ThingExists(%q, %q) = %v, %v, want false, nil", c.storageKey, c.thingID, exists, err)
		}
	}
}

func testDiscard(t *testing.T, db storage.Db) {
	ctx := context.Background()
	mustStore(t, db, "r1/s1", "thing", "x", t0)

	for i := 0; i < 2; i++ {
		if err := db.DiscardThing(ctx, "r1/s1", "thing"); err != nil {
			t.Fatalf("DiscardThing() #%d error = %v", i+1, err)
		}
	}
	if err := db.DiscardThing(ctx, "never/seen", "thing"); err != nil {
		t.Errorf("DiscardThing(absent scope) error = %v", err)
	}
	exists, err := db.ThingExists(ctx, "r1/s1", "thing")
	if err != nil || exists {
		t.Errorf("ThingExists() after discard = %v, %v, want false, nil", exists, err)
	}
}

func testEscapedIDs(t *testing.T, db storage.Db) {
	ctx := context.Background()
	ids := []string{"with space", "percent%25", "under_score", "dots.in.name", "ünïcödé", "a,b|c", "-dash", "tmp-1"}
	for i, id := range ids {
		mustStore(t, db, "r1/s 1", id, fmt.Sprintf("v%d", i), t0)
	}
	for i, id := range ids {
		got, err := db.GetThingCopy(ctx, "r1/s 1", id)
		if want := fmt.Sprintf("v%d", i); err != nil || string(got) != want {
			t.Errorf("GetThingCopy(%q) = %q, %v, want %q", id, got, err, want)
		}
	}

	found, err := db.FindThingIDs(ctx, "r1/s 1", "")
	if err != nil {
		t.Fatalf("FindThingIDs() error = %v", err)
	}
	if len(found) != len(ids) {
		t.Errorf("FindThingIDs() returned %d ids, want %d: %v", len(found), len(ids), found)
	}
}

func testInvalidKeys(t *testing.T, db storage.Db) {
	ctx := context.Background()
	cases := []struct{ storageKey, thingID string }{
		{"", "thing"},
		{"r1", "thing"},
		{"r1/", "thing"},
		{"/s1", "thing"},
		{"r1/s1/x", "thing"},
		{"r1/..", "thing"},
		{"r1/s1", ""},
		{"r1/s1", ".."},
		{"r1/s1", "a/b"},
		{"r1/s1", "nul\x00"},
	}
	for _, c := range cases {
		err := db.StoreThing(ctx, c.storageKey, c.thingID, []byte("x"), t0)
		if !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("StoreThing(%q, %q) error = %v, want ErrInvalidKey", c.storageKey, c.thingID, err)
		}
	}

	if _, err := db.FindIDs(ctx, "", ""); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("FindIDs(\"\") error = %v, want ErrInvalidKey", err)
	}
	if err := db.DiscardAll(ctx, "../x"); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("DiscardAll(\"../x\") error = %v, want ErrInvalidKey", err)
	}
}

func testLongIDs(t *testing.T, db storage.Db) {
	ctx := context.Background()

	longest := strings.Repeat("x", storage.MaxSegmentLength)
	mustStore(t, db, "r1/s1", longest, "v", t0)
	if got, err := db.GetThingCopy(ctx, "r1/s1", longest); err != nil || string(got) != "v" {
		t.Errorf("GetThingCopy(longest) = %q, %v", got, err)
	}

	for _, id := range []string{
		strings.Repeat("x", 300),
		// 100 runes of two bytes each escape to 600 bytes.
		strings.Repeat("é", 100),
	} {
		err := db.StoreThing(ctx, "r1/s1", id, []byte("x"), t0)
		if !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("StoreThing(%d-byte id) error = %v, want ErrInvalidKey", len(id), err)
		}
	}

	longStorage := "r1/" + strings.Repeat("s", 300)
	if err := db.StoreThing(ctx, longStorage, "thing", []byte("x"), t0); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("StoreThing(long storage id) error = %v, want ErrInvalidKey", err)
	}
}

func testModifiedOnRange(t *testing.T, db storage.Db) {
	ctx := context.Background()
	for i, ts := range []time.Time{
		domain.MinModifiedOn,
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		domain.MaxModifiedOn,
	} {
		id := fmt.Sprintf("t%d", i)
		mustStore(t, db, "r1/s1", id, "x", ts)
		got, err := db.GetThingModifiedOn(ctx, "r1/s1", id)
		if err != nil || !got.Equal(ts) {
			t.Errorf("GetThingModifiedOn(%v) = %v, %v", ts, got, err)
		}
	}

	fine := t0.Add(789 * time.Nanosecond)
	mustStore(t, db, "r1/s1", "fine", "x", fine)
	if got, _ := db.GetThingModifiedOn(ctx, "r1/s1", "fine"); !got.Equal(t0) {
		t.Errorf("GetThingModifiedOn() = %v, want %v", got, t0)
	}

	for _, ts := range []time.Time{
		time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		err := db.StoreThing(ctx, "r1/s1", "bad", []byte("x"), ts)
		if !errors.Is(err, domain.ErrModifiedOnOutOfRange) {
			t.Errorf("StoreThing(%v) error = %v, want ErrModifiedOnOutOfRange", ts, err)
		}
	}
	if exists, _ := db.ThingExists(ctx, "r1/s1", "bad"); exists {
		t.Error("rejected thing was stored")
	}
}

func thing(storageKey, id string) storage.IDInDb {
	return storage.IDInDb{StorageKey: storageKey, Kind: storage.KindThing, ID: id}
}

func store(repositoryID, storageID string) storage.IDInDb {
	return storage.IDInDb{StorageKey: repositoryID, Kind: storage.KindStorage, ID: storageID}
}

func seed(t *testing.T, db storage.Db) {
	t.Helper()
	for _, k := range []struct{ storageKey, thingID string }{
		{"r1/s1", "alpha"},
		{"r1/s1", "beta"},
		{"r1/s1", "gamma"},
		{"r1/s10", "alpha"},
		{"r1/s2", "delta"},
		{"r10/s1", "alpha"},
		{"r2/s1", "alpha"},
	} {
		mustStore(t, db, k.storageKey, k.thingID, k.storageKey+"/"+k.thingID, t0)
	}
}

func testFindThingIDs(t *testing.T, db storage.Db) {
	ctx := context.Background()
	seed(t, db)

	tests := []struct {
		name       string
		storageKey string
		pattern    string
		want       []storage.IDInDb
	}{
		{"blank", "r1/s1", "", []storage.IDInDb{thing("r1/s1", "alpha"), thing("r1/s1", "beta"), thing("r1/s1", "gamma")}},
		{"whitespace", "r1/s1", " ", []storage.IDInDb{thing("r1/s1", "alpha"), thing("r1/s1", "beta"), thing("r1/s1", "gamma")}},
		{"unanchored", "r1/s1", "mm", []storage.IDInDb{thing("r1/s1", "gamma")}},
		{"anchored", "r1/s1", "^.e", []storage.IDInDb{thing("r1/s1", "beta")}},
		{"no match", "r1/s1", "^zzz$", []storage.IDInDb{}},
		{"exact scope", "r1/s10", "", []storage.IDInDb{thing("r1/s10", "alpha")}},
		{"empty scope", "r9/s9", "", []storage.IDInDb{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindThingIDs(ctx, tt.storageKey, tt.pattern)
			if err != nil {
				t.Fatalf("FindThingIDs() error = %v", err)
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindThingIDs() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := db.FindThingIDs(ctx, "r1/s1", "("); !errors.Is(err, storage.ErrInvalidPattern) {
		t.Errorf("FindThingIDs(\"(\") error = %v, want ErrInvalidPattern", err)
	}
}

func testFindIDs(t *testing.T, db storage.Db) {
	ctx := context.Background()
	seed(t, db)

	tests := []struct {
		name    string
		scope   string
		pattern string
		want    []storage.IDInDb
	}{
		{"repository", "r1", "", []storage.IDInDb{
			store("r1", "s1"), store("r1", "s10"), store("r1", "s2"),
			thing("r1/s1", "alpha"), thing("r1/s1", "beta"), thing("r1/s1", "gamma"),
			thing("r1/s10", "alpha"), thing("r1/s2", "delta"),
		}},
		{"repository pattern", "r1", "^alpha$", []storage.IDInDb{
			store("r1", "s1"), store("r1", "s10"),
			thing("r1/s1", "alpha"), thing("r1/s10", "alpha"),
		}},
		{"storage", "r1/s1", "a$", []storage.IDInDb{
			store("r1", "s1"),
			thing("r1/s1", "alpha"), thing("r1/s1", "beta"), thing("r1/s1", "gamma"),
		}},
		{"no match", "r1", "nothing", []storage.IDInDb{}},
		{"unknown", "r9", "", []storage.IDInDb{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindIDs(ctx, tt.scope, tt.pattern)
			if err != nil {
				t.Fatalf("FindIDs() error = %v", err)
			}
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FindIDs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func count(t *testing.T, db storage.Db, scope string) int {
	t.Helper()
	ids, err := db.FindIDs(context.Background(), scope, "")
	if err != nil {
		t.Fatalf("FindIDs(%q) error = %v", scope, err)
	}
	return len(storage.ThingIDs(ids))
}

func testDiscardAll(t *testing.T, db storage.Db) {
	ctx := context.Background()
	seed(t, db)

	if err := db.DiscardAll(ctx, "r1/s1"); err != nil {
		t.Fatalf("DiscardAll(r1/s1) error = %v", err)
	}
	if got := count(t, db, "r1/s1"); got != 0 {
		t.Errorf("things in r1/s1 = %d, want 0", got)
	}
	if got := count(t, db, "r1/s10"); got != 1 {
		t.Errorf("things in r1/s10 = %d, want 1", got)
	}

	if err := db.DiscardAll(ctx, "r1"); err != nil {
		t.Fatalf("DiscardAll(r1) error = %v", err)
	}
	if got := count(t, db, "r1"); got != 0 {
		t.Errorf("things in r1 = %d, want 0", got)
	}
	if got := count(t, db, "r10"); got != 1 {
		t.Errorf("things in r10 = %d, want 1", got)
	}
	if got := count(t, db, "r2"); got != 1 {
		t.Errorf("things in r2 = %d, want 1", got)
	}

	if err := db.DiscardAll(ctx, "r9"); err != nil {
		t.Errorf("DiscardAll(absent) error = %v", err)
	}

	// The scope is usable again afterwards.
	mustStore(t, db, "r1/s1", "again", "x", t0)
	if got := count(t, db, "r1"); got != 1 {
		t.Errorf("things in r1 after re-store = %d, want 1", got)
	}
}

func testConcurrentStores(t *testing.T, db storage.Db) {
	ctx := context.Background()
	const writers = 16

	payload := func(i int) []byte {
		return bytes.Repeat([]byte{byte('a' + i)}, 4096)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2*writers)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- db.StoreThing(ctx, "r1/s1", "shared", payload(i), t0.Add(time.Duration(i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- db.StoreThing(ctx, "r1/s1", fmt.Sprintf("own-%02d", i), payload(i), t0)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent StoreThing() error = %v", err)
		}
	}

	got, err := db.GetThingCopy(ctx, "r1/s1", "shared")
	if err != nil {
		t.Fatalf("GetThingCopy() error = %v", err)
	}
	winner := -1
	for i := 0; i < writers; i++ {
		if bytes.Equal(got, payload(i)) {
			winner = i
		}
	}
	if winner < 0 {
		t.Fatalf("GetThingCopy() returned an interleaved payload of %d bytes", len(got))
	}

	ids, err := db.FindThingIDs(ctx, "r1/s1", "^own-")
	if err != nil || len(ids) != writers {
		t.Errorf("FindThingIDs(^own-) = %d ids, %v, want %d", len(ids), err, writers)
	}
}

func testClosed(t *testing.T, db storage.Db) {
	ctx := context.Background()
	mustStore(t, db, "r1/s1", "thing", "x", t0)
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if err := db.StoreThing(ctx, "r1/s1", "thing", []byte("y"), t0); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("StoreThing() after Close error = %v, want ErrClosed", err)
	}
	if _, err := db.GetThingCopy(ctx, "r1/s1", "thing"); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("GetThingCopy() after Close error = %v, want ErrClosed", err)
	}
	if _, err := db.FindIDs(ctx, "r1", ""); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("FindIDs() after Close error = %v, want ErrClosed", err)
	}
}
