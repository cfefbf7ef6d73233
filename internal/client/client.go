package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/protocol"
	"github.com/yndnr/thingvault/pkg/crypto/asym"
	"github.com/yndnr/thingvault/pkg/crypto/obfuscate"
)

const apiPrefix = "/api/storage/"

// ErrUnexpectedAnswer is returned when a success response carries data of
// the wrong shape.
var ErrUnexpectedAnswer = errors.New("client: unexpected answer")

// Transport sends one command and returns its decoded envelope.
// *connection.HTTPClient implements it.
type Transport interface {
	Do(ctx context.Context, method, path, body string) (*protocol.Response, error)
}

// Repository identifies a repository and the key apps encrypt for.
type Repository struct {
	ID        string `json:"repository_id" yaml:"repository_id"`
	PublicKey string `json:"public_key" yaml:"public_key"`
}

// Key parses the repository public key.
func (r Repository) Key() (asym.PublicKey, error) {
	return asym.ParsePublicKey(r.PublicKey)
}

// call runs a command and converts failure envelopes to errors.
func call(ctx context.Context, t Transport, method, path, body string) (string, error) {
	resp, err := t.Do(ctx, method, path, body)
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Data, nil
}

func commandPath(command string, args ...string) string {
	p := apiPrefix + command
	if len(args) == 0 {
		return p
	}
	escaped := make([]string, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return p + "/" + protocol.JoinArgs(escaped...)
}

// NewRepository provisions a repository owned by ownerID.
func NewRepository(ctx context.Context, t Transport, ownerID string) (Repository, error) {
	path := commandPath(protocol.CmdNewClient)
	if ownerID != "" {
		path += "?owner=" + url.QueryEscape(ownerID)
	}
	data, err := call(ctx, t, http.MethodGet, path, "")
	if err != nil {
		return Repository{}, err
	}
	args, err := protocol.SplitArgs(data, 2)
	if err != nil {
		return Repository{}, fmt.Errorf("%w: %v", ErrUnexpectedAnswer, err)
	}
	repo := Repository{ID: args[0], PublicKey: args[1]}
	if _, err := repo.Key(); err != nil {
		return Repository{}, fmt.Errorf("%w: %v", ErrUnexpectedAnswer, err)
	}
	return repo, nil
}

// App is a registered app.
type App struct {
	t       Transport
	repo    Repository
	repoKey asym.PublicKey
	keys    *asym.KeyPair
	token   string
}

// Register registers keys with repo. Registering the same keys again
// yields the same token while the app is cached by the server.
func Register(ctx context.Context, t Transport, repo Repository, keys *asym.KeyPair) (*App, error) {
	repoKey, err := repo.Key()
	if err != nil {
		return nil, err
	}
	ciphertext, err := asym.Encrypt(repoKey, []byte(keys.Public.String()))
	if err != nil {
		return nil, err
	}
	body := "'" + obfuscate.Obfuscate(ciphertext) + "'"
	token, err := call(ctx, t, http.MethodPost, commandPath(protocol.CmdRegisterApp, repo.ID), body)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: empty app token", ErrUnexpectedAnswer)
	}
	return &App{t: t, repo: repo, repoKey: repoKey, keys: keys, token: token}, nil
}

// Token returns the app token.
func (a *App) Token() string { return a.token }

// Repository returns the repository the app belongs to.
func (a *App) Repository() Repository { return a.repo }

// Open opens storageID. The answer is verified against the repository
// key before it is trusted.
func (a *App) Open(ctx context.Context, storageID string) (*Storage, error) {
	data, err := call(ctx, a.t, http.MethodGet, commandPath(protocol.CmdOpen, a.token, storageID), "")
	if err != nil {
		return nil, err
	}
	plain, err := asym.VerifyAndDecrypt(a.repoKey, a.keys, data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", storageID, err)
	}
	args, err := protocol.SplitArgs(string(plain), 2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedAnswer, err)
	}
	key, err := asym.ParsePublicKey(args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedAnswer, err)
	}
	return &Storage{app: a, id: storageID, token: args[0], key: key}, nil
}

// Storage is an open storage.
type Storage struct {
	app   *App
	id    string
	token string
	key   asym.PublicKey
}

// ID returns the storage id.
func (s *Storage) ID() string { return s.id }

// Token returns the storage token.
func (s *Storage) Token() string { return s.token }

// Store creates or replaces a thing. modifiedOn is kept to the
// microsecond and must fall within years 1 through 9999.
func (s *Storage) Store(ctx context.Context, thingID string, modifiedOn time.Time, data []byte) error {
	if err := domain.CheckModifiedOn(modifiedOn); err != nil {
		return err
	}
	sealed, err := asym.EncryptAndSign(s.key, s.app.keys, []byte(protocol.EncodeThing(modifiedOn, data)))
	if err != nil {
		return err
	}
	_, err = call(ctx, s.app.t, http.MethodPut, s.path(protocol.CmdStore, thingID), obfuscate.Obfuscate(sealed))
	return err
}

// Exists reports whether a thing exists.
func (s *Storage) Exists(ctx context.Context, thingID string) (bool, error) {
	data, err := call(ctx, s.app.t, http.MethodGet, s.path(protocol.CmdExists, thingID), "")
	if err != nil {
		return false, err
	}
	switch data {
	case protocol.Yes:
		return true, nil
	case protocol.No:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnexpectedAnswer, data)
	}
}

// ModifiedOn returns the modification time recorded with the thing.
func (s *Storage) ModifiedOn(ctx context.Context, thingID string) (time.Time, error) {
	data, err := call(ctx, s.app.t, http.MethodGet, s.path(protocol.CmdGetModifiedOn, thingID), "")
	if err != nil {
		return time.Time{}, err
	}
	return protocol.DecodeTime(data)
}

// Get returns a copy of the thing and its modification time.
func (s *Storage) Get(ctx context.Context, thingID string) (time.Time, []byte, error) {
	data, err := call(ctx, s.app.t, http.MethodGet, s.path(protocol.CmdGetACopy, thingID), "")
	if err != nil {
		return time.Time{}, nil, err
	}
	plain, err := asym.VerifyAndDecrypt(s.key, s.app.keys, data)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("get %s: %w", thingID, err)
	}
	return protocol.DecodeThing(string(plain))
}

// Discard removes a thing. Discarding an absent thing succeeds.
func (s *Storage) Discard(ctx context.Context, thingID string) error {
	_, err := call(ctx, s.app.t, http.MethodDelete, s.path(protocol.CmdDiscard, thingID), "")
	return err
}

// FindIDs lists the ids of things whose id matches the regular
// expression pattern. A blank pattern matches everything.
func (s *Storage) FindIDs(ctx context.Context, pattern string) ([]string, error) {
	data, err := call(ctx, s.app.t, http.MethodGet, s.path(protocol.CmdFindIDs, pattern), "")
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	plain, err := asym.VerifyAndDecrypt(s.key, s.app.keys, data)
	if err != nil {
		return nil, fmt.Errorf("find ids: %w", err)
	}
	ids, err := protocol.SplitIDs(string(plain))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedAnswer, err)
	}
	return ids, nil
}

func (s *Storage) path(command, arg string) string {
	return commandPath(command, s.token, arg)
}
