package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/protocol"
	"github.com/yndnr/thingvault/internal/storage"
	"github.com/yndnr/thingvault/internal/telemetry/logger"
	"github.com/yndnr/thingvault/pkg/crypto/asym"
	"github.com/yndnr/thingvault/pkg/crypto/obfuscate"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDb(t *testing.T) storage.Db {
	t.Helper()
	db, err := storage.NewFileSystem(storage.FSConfig{Root: t.TempDir()}, nil, nil)
	if err != nil {
		t.Fatalf("NewFileSystem() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestManager(t *testing.T, db storage.Db, opts ...ManagerOption) *Manager {
	t.Helper()
	m, err := NewManager("test-manager", db, opts...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

// client plays the app side of the protocol.
type client struct {
	t            *testing.T
	m            *Manager
	keys         *asym.KeyPair
	repositoryID string
	repoKey      asym.PublicKey
}

func newClient(t *testing.T, m *Manager) *client {
	t.Helper()
	resp := m.NewClient(context.Background(), "owner-1")
	if !resp.OK {
		t.Fatalf("NewClient() = %v", resp)
	}
	args, err := protocol.SplitArgs(resp.Data, 2)
	if err != nil {
		t.Fatalf("NewClient() data = %q: %v", resp.Data, err)
	}
	repoKey, err := asym.ParsePublicKey(args[1])
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	return &client{t: t, m: m, keys: mustKeys(t), repositoryID: args[0], repoKey: repoKey}
}

func mustKeys(t *testing.T) *asym.KeyPair {
	t.Helper()
	kp, err := asym.Generate()
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return kp
}

func (c *client) registerBody(keys *asym.KeyPair) string {
	c.t.Helper()
	ct, err := asym.Encrypt(c.repoKey, []byte(keys.Public.String()))
	if err != nil {
		c.t.Fatalf("Encrypt() error = %v", err)
	}
	return "'" + obfuscate.Obfuscate(ct) + "'"
}

func (c *client) register() string {
	c.t.Helper()
	resp := c.m.RegisterApp(context.Background(), c.repositoryID, c.registerBody(c.keys))
	if !resp.OK {
		c.t.Fatalf("RegisterApp() = %v", resp)
	}
	return resp.Data
}

type opened struct {
	token string
	key   asym.PublicKey
}

func (c *client) open(appToken, storageID string) opened {
	c.t.Helper()
	resp := c.m.OpenStorage(context.Background(), appToken, storageID)
	if !resp.OK {
		c.t.Fatalf("OpenStorage() = %v", resp)
	}
	plain, err := asym.VerifyAndDecrypt(c.repoKey, c.keys, resp.Data)
	if err != nil {
		c.t.Fatalf("open payload: %v", err)
	}
	args, err := protocol.SplitArgs(string(plain), 2)
	if err != nil {
		c.t.Fatalf("open payload %q: %v", plain, err)
	}
	key, err := asym.ParsePublicKey(args[1])
	if err != nil {
		c.t.Fatalf("storage key: %v", err)
	}
	return opened{token: args[0], key: key}
}

func (c *client) storeBody(s opened, modifiedOn time.Time, data []byte) string {
	c.t.Helper()
	sealed, err := asym.EncryptAndSign(s.key, c.keys, []byte(protocol.EncodeThing(modifiedOn, data)))
	if err != nil {
		c.t.Fatalf("EncryptAndSign() error = %v", err)
	}
	return obfuscate.Obfuscate(sealed)
}

func (c *client) unseal(s opened, data string) []byte {
	c.t.Helper()
	plain, err := asym.VerifyAndDecrypt(s.key, c.keys, data)
	if err != nil {
		c.t.Fatalf("VerifyAndDecrypt() error = %v", err)
	}
	return plain
}

func wantError(t *testing.T, resp *protocol.Response, kind domain.ErrorKind) {
	t.Helper()
	if resp.OK {
		t.Fatalf("response = %v, want ERROR %v", resp, kind)
	}
	if resp.Code != kind {
		t.Errorf("response code = %v (%s), want %v", resp.Code, resp.Message, kind)
	}
}

func TestNewManager(t *testing.T) {
	db := newTestDb(t)
	tests := []struct {
		name    string
		id      string
		db      storage.Db
		wantErr bool
	}{
		{"valid", "thingvault", db, false},
		{"nil db", "thingvault", nil, true},
		{"empty id", "", db, true},
		{"slash", "a/b", db, true},
		{"repository prefix", "tvrp-x", db, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.id, tt.db)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	c := newClient(t, m)

	repo, err := m.GetRepository(context.Background(), c.repositoryID)
	if err != nil {
		t.Fatalf("GetRepository() error = %v", err)
	}
	if !repo.PublicKey().Equal(c.repoKey) {
		t.Error("repository public key differs from the one handed to the client")
	}
	if repo.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want %q", repo.OwnerID, "owner-1")
	}
}

func TestGetRepository_Rehydrates(t *testing.T) {
	db := newTestDb(t)
	first := newTestManager(t, db)
	c := newClient(t, first)

	second := newTestManager(t, db)
	repo, err := second.GetRepository(context.Background(), c.repositoryID)
	if err != nil {
		t.Fatalf("GetRepository() error = %v", err)
	}
	if !repo.PublicKey().Equal(c.repoKey) {
		t.Error("rehydrated repository has a different key")
	}

	// The rehydrated key pair can unwrap registrations.
	c.m = second
	if token := c.register(); token == "" {
		t.Error("RegisterApp() returned an empty token")
	}

	_, err = second.GetRepository(context.Background(), "tvrp-unknown")
	if !errors.Is(err, domain.ErrRepositoryNotFound) {
		t.Errorf("GetRepository(unknown) error = %v, want ErrRepositoryNotFound", err)
	}
}

func TestRegisterApp(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	c := newClient(t, m)
	ctx := context.Background()

	first := c.register()
	if !strings.HasPrefix(first, "tvat_") {
		t.Errorf("app token = %q, want tvat_ prefix", first)
	}
	if again := c.register(); again != first {
		t.Errorf("second RegisterApp() = %q, want %q", again, first)
	}

	other := c.m.RegisterApp(ctx, c.repositoryID, c.registerBody(mustKeys(t)))
	if !other.OK || other.Data == first {
		t.Errorf("RegisterApp(other key) = %v, want a distinct token", other)
	}

	tests := []struct {
		name         string
		repositoryID string
		body         string
		want         domain.ErrorKind
	}{
		{"unknown repository", "tvrp-missing", c.registerBody(c.keys), domain.KindRepositoryDoesNotExist},
		{"invalid repository id", "../etc", c.registerBody(c.keys), domain.KindRepositoryDoesNotExist},
		{"not obfuscated", c.repositoryID, "%%%", domain.KindAppRegistrationFailed},
		{"garbage ciphertext", c.repositoryID, obfuscate.Obfuscate("abc"), domain.KindAppRegistrationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantError(t, m.RegisterApp(ctx, tt.repositoryID, tt.body), tt.want)
		})
	}

	if got := m.Stats().Apps; got != 2 {
		t.Errorf("Stats().Apps = %d, want 2", got)
	}
}

func TestOpenStorage(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	c := newClient(t, m)
	ctx := context.Background()
	appToken := c.register()

	s := c.open(appToken, "docs")
	if !strings.HasPrefix(s.token, "tvst_") {
		t.Errorf("storage token = %q, want tvst_ prefix", s.token)
	}
	if again := c.open(appToken, "docs"); again.token != s.token || !again.key.Equal(s.key) {
		t.Errorf("reopen returned %q, want %q", again.token, s.token)
	}
	if other := c.open(appToken, "photos"); other.token == s.token {
		t.Error("distinct storage ids share a token")
	}

	before := m.Stats().Storages
	wantError(t, m.OpenStorage(ctx, "tvat_unknown", "docs"), domain.KindIncorrectAppToken)
	wantError(t, m.OpenStorage(ctx, appToken, "a/b"), domain.KindOpenStorageFailed)
	wantError(t, m.OpenStorage(ctx, appToken, ""), domain.KindOpenStorageFailed)
	if after := m.Stats().Storages; after != before {
		t.Errorf("failed opens changed storage count from %d to %d", before, after)
	}
}

func TestThingLifecycle(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	c := newClient(t, m)
	ctx := context.Background()
	s := c.open(c.register(), "docs")

	modifiedOn := time.Date(2023, 12, 24, 18, 30, 0, 123000, time.UTC)
	data := []byte("the quick brown fox, | jumps")

	if resp := m.StoreThing(ctx, s.token, "note-1", c.storeBody(s, modifiedOn, data)); !resp.OK {
		t.Fatalf("StoreThing() = %v", resp)
	}

	if resp := m.ThingExists(ctx, s.token, "note-1"); resp.Data != protocol.Yes {
		t.Errorf("ThingExists() = %v, want YES", resp)
	}
	if resp := m.ThingExists(ctx, s.token, "note-2"); resp.Data != protocol.No {
		t.Errorf("ThingExists(absent) = %v, want NO", resp)
	}

	resp := m.GetThingModifiedOn(ctx, s.token, "note-1")
	if got, err := protocol.DecodeTime(resp.Data); err != nil || !got.Equal(modifiedOn) {
		t.Errorf("GetThingModifiedOn() = %v (%v), want %v", resp, err, modifiedOn)
	}

	resp = m.GetThingCopy(ctx, s.token, "note-1")
	if !resp.OK {
		t.Fatalf("GetThingCopy() = %v", resp)
	}
	gotOn, gotData, err := protocol.DecodeThing(string(c.unseal(s, resp.Data)))
	if err != nil {
		t.Fatalf("DecodeThing() error = %v", err)
	}
	if !gotOn.Equal(modifiedOn) || string(gotData) != string(data) {
		t.Errorf("GetThingCopy() = %v %q, want %v %q", gotOn, gotData, modifiedOn, data)
	}

	if resp := m.DiscardThing(ctx, s.token, "note-1"); !resp.OK {
		t.Errorf("DiscardThing() = %v", resp)
	}
	if resp := m.DiscardThing(ctx, s.token, "note-1"); !resp.OK {
		t.Errorf("DiscardThing(absent) = %v", resp)
	}
	wantError(t, m.GetThingCopy(ctx, s.token, "note-1"), domain.KindThingNotFound)
	wantError(t, m.GetThingModifiedOn(ctx, s.token, "note-1"), domain.KindThingNotFound)
}

func TestFindThingIDs(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	c := newClient(t, m)
	ctx := context.Background()
	appToken := c.register()
	s := c.open(appToken, "docs")
	other := c.open(appToken, "other")

	for _, id := range []string{"invoice-1", "invoice-2", "receipt-1"} {
		if resp := m.StoreThing(ctx, s.token, id, c.storeBody(s, time.Now(), []byte(id))); !resp.OK {
			t.Fatalf("StoreThing(%q) = %v", id, resp)
		}
	}
	if resp := m.StoreThing(ctx, other.token, "invoice-9", c.storeBody(other, time.Now(), nil)); !resp.OK {
		t.Fatalf("StoreThing(other) = %v", resp)
	}

	tests := []struct {
		pattern string
		want    string
	}{
		{" ", "invoice-1|invoice-2|receipt-1"},
		{"", "invoice-1|invoice-2|receipt-1"},
		{"^invoice", "invoice-1|invoice-2"},
		{"-1$", "invoice-1|receipt-1"},
		{"nothing", ""},
	}
	for _, tt := range tests {
		resp := m.FindThingIDs(ctx, s.token, tt.pattern)
		if !resp.OK {
			t.Errorf("FindThingIDs(%q) = %v", tt.pattern, resp)
			continue
		}
		got := ""
		if resp.Data != "" {
			got = string(c.unseal(s, resp.Data))
		}
		if got != tt.want {
			t.Errorf("FindThingIDs(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}

	wantError(t, m.FindThingIDs(ctx, s.token, "("), domain.KindThingOperationFailed)
}

func TestThingOperations_IncorrectStorageToken(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	ctx := context.Background()
	const bad = "tvst_nope"

	ops := map[string]func() *protocol.Response{
		"store":         func() *protocol.Response { return m.StoreThing(ctx, bad, "x", "body") },
		"exists":        func() *protocol.Response { return m.ThingExists(ctx, bad, "x") },
		"getmodifiedon": func() *protocol.Response { return m.GetThingModifiedOn(ctx, bad, "x") },
		"getacopy":      func() *protocol.Response { return m.GetThingCopy(ctx, bad, "x") },
		"discard":       func() *protocol.Response { return m.DiscardThing(ctx, bad, "x") },
		"findids":       func() *protocol.Response { return m.FindThingIDs(ctx, bad, "") },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			wantError(t, op(), domain.KindIncorrectStorageToken)
		})
	}
}

func TestStoreThing_Rejected(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	c := newClient(t, m)
	ctx := context.Background()
	s := c.open(c.register(), "docs")

	forged, err := asym.EncryptAndSign(s.key, mustKeys(t), []byte(protocol.EncodeThing(time.Now(), []byte("x"))))
	if err != nil {
		t.Fatal(err)
	}
	notAThing, err := asym.EncryptAndSign(s.key, c.keys, []byte("no comma here"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		thingID string
		body    string
	}{
		{"not obfuscated", "x", "***"},
		{"unsealed", "x", obfuscate.Obfuscate("just text")},
		{"wrong signer", "x", obfuscate.Obfuscate(forged)},
		{"bad payload", "x", obfuscate.Obfuscate(notAThing)},
		{"invalid thing id", "a/b", c.storeBody(s, time.Now(), []byte("x"))},
		{"thing id too long", strings.Repeat("x", 300), c.storeBody(s, time.Now(), []byte("x"))},
		{"time out of range", "x", c.storeBody(s, time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), []byte("x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantError(t, m.StoreThing(ctx, s.token, tt.thingID, tt.body), domain.KindThingOperationFailed)
		})
	}
}

func TestRemoveRepository(t *testing.T) {
	db := newTestDb(t)
	var logs bytes.Buffer
	log, err := logger.New(logger.Config{Format: "json", Output: &logs})
	if err != nil {
		t.Fatal(err)
	}
	m := newTestManager(t, db, WithLogger(log))
	c := newClient(t, m)
	ctx := context.Background()
	appToken := c.register()
	s := c.open(appToken, "docs")
	if resp := m.StoreThing(ctx, s.token, "a", c.storeBody(s, time.Now(), []byte("x"))); !resp.OK {
		t.Fatalf("StoreThing() = %v", resp)
	}
	other := c.open(appToken, "other")
	if resp := m.StoreThing(ctx, other.token, "b", c.storeBody(other, time.Now(), []byte("y"))); !resp.OK {
		t.Fatalf("StoreThing() = %v", resp)
	}

	keep := newClient(t, m)

	if err := m.RemoveRepository(ctx, c.repositoryID); err != nil {
		t.Fatalf("RemoveRepository() error = %v", err)
	}

	wantError(t, m.ThingExists(ctx, s.token, "a"), domain.KindIncorrectStorageToken)
	wantError(t, m.OpenStorage(ctx, appToken, "docs"), domain.KindIncorrectAppToken)
	if _, err := m.GetRepository(ctx, c.repositoryID); !errors.Is(err, domain.ErrRepositoryNotFound) {
		t.Errorf("GetRepository() after remove error = %v", err)
	}
	ids, err := db.FindIDs(ctx, c.repositoryID, "")
	if err != nil || len(ids) != 0 {
		t.Errorf("things left after remove = %v, %v", ids, err)
	}

	if _, err := m.GetRepository(ctx, keep.repositoryID); err != nil {
		t.Errorf("unrelated repository lost: %v", err)
	}

	var removed struct {
		Storages []string `json:"storages"`
		Things   int      `json:"things"`
	}
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		if strings.Contains(line, `"repository removed"`) {
			if err := json.Unmarshal([]byte(line), &removed); err != nil {
				t.Fatalf("log line %q: %v", line, err)
			}
		}
	}
	if !reflect.DeepEqual(removed.Storages, []string{"docs", "other"}) || removed.Things != 2 {
		t.Errorf("removal logged storages %q and %d things, want [docs other] and 2", removed.Storages, removed.Things)
	}
	if err := m.RemoveRepository(ctx, c.repositoryID); !errors.Is(err, domain.ErrRepositoryNotFound) {
		t.Errorf("second RemoveRepository() error = %v, want ErrRepositoryNotFound", err)
	}
}

func TestConcurrentRegisterAndOpen(t *testing.T) {
	m := newTestManager(t, newTestDb(t))
	c := newClient(t, m)
	ctx := context.Background()
	body := c.registerBody(c.keys)

	const n = 16
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i] = m.RegisterApp(ctx, c.repositoryID, body).Data
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("concurrent RegisterApp() tokens differ: %q vs %q", tokens[i], tokens[0])
		}
	}

	storageTokens := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := m.OpenStorage(ctx, tokens[0], "shared")
			if resp.OK {
				plain, err := asym.VerifyAndDecrypt(c.repoKey, c.keys, resp.Data)
				if err == nil {
					storageTokens[i], _, _ = strings.Cut(string(plain), ",")
				}
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		if storageTokens[i] == "" || storageTokens[i] != storageTokens[0] {
			t.Fatalf("concurrent OpenStorage() tokens differ: %q vs %q", storageTokens[i], storageTokens[0])
		}
	}
	if got := m.Stats().Storages; got != 1 {
		t.Errorf("Stats().Storages = %d, want 1", got)
	}
}

func TestReady(t *testing.T) {
	db, err := storage.NewFileSystem(storage.FSConfig{Root: t.TempDir()}, nil, nil)
	if err != nil {
		t.Fatalf("NewFileSystem() error = %v", err)
	}
	m := newTestManager(t, db)

	if err := m.Ready(context.Background()); err != nil {
		t.Errorf("Ready() error = %v", err)
	}
	db.Close()
	if err := m.Ready(context.Background()); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Ready() after Close error = %v, want ErrClosed", err)
	}
}

func TestThingFailure_WireMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("rename /srv/thingvault/r1/s1/ tmp-1: %w", os.ErrPermission), "thing operation failed"},
		{fmt.Errorf("thing id %q: %w", "a/b", storage.ErrInvalidKey), "thing operation failed: storage: invalid key"},
		{fmt.Errorf("protocol: %w", domain.ErrModifiedOnOutOfRange), "thing operation failed: modification time out of range"},
	}
	for _, tt := range tests {
		got := thingFailure(tt.err)
		if msg := got.WireMessage(); msg != tt.want {
			t.Errorf("thingFailure(%v).WireMessage() = %q, want %q", tt.err, msg, tt.want)
		}
		if !errors.Is(got, tt.err) {
			t.Errorf("thingFailure(%v) lost its cause", tt.err)
		}
	}
}
