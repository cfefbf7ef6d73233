package service

import (
	"context"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/protocol"
	"github.com/yndnr/thingvault/internal/storage"
	"github.com/yndnr/thingvault/pkg/crypto/obfuscate"
)

// NewClient provisions a repository for ownerID and answers with
// "repositoryId,repositoryPublicKey", the two values a client needs to
// register apps.
func (m *Manager) NewClient(ctx context.Context, ownerID string) *protocol.Response {
	start := time.Now()
	repo, err := m.NewRepository(ctx, ownerID, "")
	if err != nil {
		err = domain.ErrRepositoryDoesNotExist.WithDetails("create repository").WithCause(err)
		return m.finish(ctx, protocol.CmdNewClient, start, fail(err, domain.KindRepositoryDoesNotExist), err)
	}
	return m.finish(ctx, protocol.CmdNewClient, start, protocol.OK(repo.ID, repo.PublicKey().String()), nil)
}

// RegisterApp registers the app public key carried by body, which is the
// key encrypted for the repository and then obfuscated. Registering the
// same key again returns the same app token.
func (m *Manager) RegisterApp(ctx context.Context, repositoryID, body string) *protocol.Response {
	start := time.Now()
	resp, err := m.registerApp(ctx, repositoryID, body)
	return m.finish(ctx, protocol.CmdRegisterApp, start, resp, err)
}

func (m *Manager) registerApp(ctx context.Context, repositoryID, body string) (*protocol.Response, error) {
	m.RunGC(ctx)

	m.gcMu.RLock()
	defer m.gcMu.RUnlock()

	repo, err := m.getRepository(ctx, repositoryID)
	if err != nil {
		return protocol.Error(domain.KindRepositoryDoesNotExist, domain.ErrRepositoryDoesNotExist.Message), err
	}

	ciphertext, err := obfuscate.Deobfuscate(body)
	if err != nil {
		err = domain.ErrAppRegistrationFailed.WithCause(err)
		return fail(err, domain.KindAppRegistrationFailed), err
	}
	pub, err := repo.UnwrapAppKey(ciphertext)
	if err != nil {
		err = domain.ErrAppRegistrationFailed.WithCause(err)
		return fail(err, domain.KindAppRegistrationFailed), err
	}

	now := m.now()
	app, created, err := m.appsByKey.GetOrCreate(domain.AppLookupKey(repo.ID, pub), func() (*domain.App, error) {
		a, err := domain.NewApp(repo, pub, now)
		if err != nil {
			return nil, err
		}
		m.apps.Set(a.Token, a)
		return a, nil
	})
	if err != nil {
		err = domain.ErrAppRegistrationFailed.WithCause(err)
		return fail(err, domain.KindAppRegistrationFailed), err
	}
	app.Touch(now)

	if created {
		m.log(ctx).Info("app registered", "repository_id", repo.ID, "app_token", app.Token)
	}
	return protocol.OK(app.Token), nil
}

// OpenStorage opens storageID for the app holding appToken. The answer is
// "signature,payload": the storage token and public key, encrypted for the
// app and signed by the repository.
func (m *Manager) OpenStorage(ctx context.Context, appToken, storageID string) *protocol.Response {
	start := time.Now()
	resp, err := m.openStorage(ctx, appToken, storageID)
	return m.finish(ctx, protocol.CmdOpen, start, resp, err)
}

func (m *Manager) openStorage(ctx context.Context, appToken, storageID string) (*protocol.Response, error) {
	m.RunGC(ctx)

	m.gcMu.RLock()
	defer m.gcMu.RUnlock()

	app, ok := m.apps.Get(appToken)
	if !ok {
		err := domain.ErrIncorrectAppToken
		return protocol.Error(err.Kind, err.Message), err
	}
	now := m.now()
	app.Touch(now)
	app.Repository.Touch(now)

	if err := storage.ValidateStorageKey(storage.ScopeKey(app.Repository.ID, storageID)); err != nil {
		err := domain.ErrOpenStorageFailed.WithCause(err)
		return fail(err, domain.KindOpenStorageFailed), err
	}

	s, created, err := m.storagesByKey.GetOrCreate(domain.StorageLookupKey(app.Token, storageID), func() (*domain.Storage, error) {
		s, err := domain.NewStorage(app, storageID, now)
		if err != nil {
			return nil, err
		}
		m.storages.Set(s.Token, s)
		return s, nil
	})
	if err != nil {
		err = domain.ErrOpenStorageFailed.WithCause(err)
		return fail(err, domain.KindOpenStorageFailed), err
	}
	s.Touch(now)

	sealed, err := app.Repository.SealFor(app.PublicKey, []byte(s.TokenAndPublicKey()))
	if err != nil {
		err = domain.ErrOpenStorageFailed.WithCause(err)
		return fail(err, domain.KindOpenStorageFailed), err
	}

	if created {
		m.log(ctx).Info("storage opened", "storage_key", s.Key(), "storage_token", s.Token)
	}
	return protocol.OK(sealed.String()), nil
}
