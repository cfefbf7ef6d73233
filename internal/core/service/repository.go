package service

import (
	"context"
	"errors"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/storage"
)

func (m *Manager) repositoriesKey() string {
	return storage.ScopeKey(m.id, repositoriesStorageID)
}

// NewRepository creates a repository, persists it and caches it.
func (m *Manager) NewRepository(ctx context.Context, ownerID, name string) (*domain.Repository, error) {
	m.RunGC(ctx)

	now := m.now()
	repo, err := domain.NewRepository(ownerID, name, now)
	if err != nil {
		return nil, err
	}
	record, err := repo.MarshalRecord()
	if err != nil {
		return nil, err
	}
	if err := m.db.StoreThing(ctx, m.repositoriesKey(), repo.ID, record, now); err != nil {
		return nil, err
	}
	m.repositories.Set(repo.ID, repo)

	m.log(ctx).Info("repository created", "repository_id", repo.ID, "owner_id", ownerID)
	return repo, nil
}

// GetRepository returns the cached repository or loads it from the
// backend. Fails with domain.ErrRepositoryNotFound.
func (m *Manager) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	m.gcMu.RLock()
	defer m.gcMu.RUnlock()
	return m.getRepository(ctx, id)
}

// getRepository is GetRepository for callers holding gcMu.
func (m *Manager) getRepository(ctx context.Context, id string) (*domain.Repository, error) {
	now := m.now()
	if repo, ok := m.repositories.Get(id); ok {
		repo.Touch(now)
		return repo, nil
	}

	record, err := m.db.GetThingCopy(ctx, m.repositoriesKey(), id)
	if err != nil {
		if errors.Is(err, storage.ErrThingNotFound) {
			return nil, domain.ErrRepositoryNotFound.WithDetails(id)
		}
		return nil, domain.ErrRepositoryNotFound.WithDetails(id).WithCause(err)
	}
	loaded, err := domain.UnmarshalRepository(record, now)
	if err != nil {
		return nil, domain.ErrRepositoryNotFound.WithDetails(id).WithCause(err)
	}
	if loaded.ID != id {
		return nil, domain.ErrRepositoryNotFound.WithDetails(id)
	}

	// A concurrent load may have won; keep a single entity per id.
	repo, _, _ := m.repositories.GetOrCreate(id, func() (*domain.Repository, error) {
		return loaded, nil
	})
	repo.Touch(now)
	return repo, nil
}

// RemoveRepository evicts the repository with its apps and storages and
// deletes its durable state, including every thing it holds.
func (m *Manager) RemoveRepository(ctx context.Context, id string) error {
	m.RunGC(ctx)

	cached := m.repositories.Has(id)
	if !cached {
		exists, err := m.db.ThingExists(ctx, m.repositoriesKey(), id)
		if err != nil {
			return domain.ErrRepositoryNotFound.WithDetails(id).WithCause(err)
		}
		if !exists {
			return domain.ErrRepositoryNotFound.WithDetails(id)
		}
	}

	m.gcMu.Lock()
	m.repositories.Delete(id)
	for _, s := range m.storages.Values() {
		if s.App.Repository.ID == id {
			m.dropStorage(s)
		}
	}
	for _, a := range m.apps.Values() {
		if a.Repository.ID == id {
			m.dropApp(a)
		}
	}
	m.gcMu.Unlock()

	held, err := m.db.FindIDs(ctx, id, "")
	if err != nil {
		return err
	}
	if err := m.db.DiscardThing(ctx, m.repositoriesKey(), id); err != nil {
		return err
	}
	if err := m.db.DiscardAll(ctx, id); err != nil {
		return err
	}

	storages, things := countHeld(held)
	m.log(ctx).Info("repository removed", "repository_id", id, "storages", storages, "things", things)
	m.RunGC(ctx)
	return nil
}

// countHeld splits a repository-scope listing into the storage ids it
// names and the number of things.
func countHeld(held []storage.IDInDb) (storageIDs []string, things int) {
	storageIDs = []string{}
	for _, e := range held {
		switch e.Kind {
		case storage.KindStorage:
			storageIDs = append(storageIDs, e.ID)
		case storage.KindThing:
			things++
		}
	}
	return storageIDs, things
}

func (m *Manager) dropStorage(s *domain.Storage) {
	same := func(cur *domain.Storage) bool { return cur == s }
	m.storages.DeleteIf(s.Token, same)
	m.storagesByKey.DeleteIf(domain.StorageLookupKey(s.App.Token, s.ID), same)
}

func (m *Manager) dropApp(a *domain.App) {
	same := func(cur *domain.App) bool { return cur == a }
	m.apps.DeleteIf(a.Token, same)
	m.appsByKey.DeleteIf(a.LookupKey(), same)
}
