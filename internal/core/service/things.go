package service

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/protocol"
	"github.com/yndnr/thingvault/internal/storage"
	"github.com/yndnr/thingvault/pkg/crypto/obfuscate"
)

// inStorage resolves storageToken and runs fn against the storage.
// Errors from fn without a kind of their own report ThingOperationFailed.
func (m *Manager) inStorage(ctx context.Context, command, storageToken string, fn func(s *domain.Storage) (*protocol.Response, error)) *protocol.Response {
	start := time.Now()
	m.RunGC(ctx)

	m.gcMu.RLock()
	s, ok := m.storages.Get(storageToken)
	if ok {
		s.Touch(m.now())
	}
	m.gcMu.RUnlock()
	if !ok {
		err := domain.ErrIncorrectStorageToken
		return m.finish(ctx, command, start, protocol.Error(err.Kind, err.Message), err)
	}

	resp, err := fn(s)
	if err != nil {
		if domain.KindOf(err, domain.KindNone) == domain.KindNone {
			err = thingFailure(err)
		}
		resp = fail(err, domain.KindThingOperationFailed)
	}
	return m.finish(ctx, command, start, resp, err)
}

// thingFailure wraps err as ThingOperationFailed. Errors caused by the
// request itself are described to the client; the rest only reach the
// log.
func thingFailure(err error) *domain.DomainError {
	failed := domain.ErrThingOperationFailed.WithCause(err)
	for _, clientErr := range []error{
		storage.ErrInvalidKey,
		storage.ErrInvalidPattern,
		domain.ErrModifiedOnOutOfRange,
		protocol.ErrBadArguments,
	} {
		if errors.Is(err, clientErr) {
			return failed.WithDetails(clientErr.Error())
		}
	}
	return failed
}

// StoreThing stores a thing. body is the obfuscated "signature,payload"
// whose payload, encrypted for the storage and signed by the app, is
// "modifiedOn,base64(data)".
func (m *Manager) StoreThing(ctx context.Context, storageToken, thingID, body string) *protocol.Response {
	return m.inStorage(ctx, protocol.CmdStore, storageToken, func(s *domain.Storage) (*protocol.Response, error) {
		thing, err := openThing(s, thingID, body)
		if err != nil {
			return nil, err
		}
		if err := m.db.StoreThing(ctx, thing.StorageKey, thing.ID, thing.Data, thing.ModifiedOn); err != nil {
			return nil, err
		}
		return protocol.OK(), nil
	})
}

func openThing(s *domain.Storage, thingID, body string) (*domain.Thing, error) {
	plain, err := obfuscate.Deobfuscate(body)
	if err != nil {
		return nil, err
	}
	sealed, err := domain.ParseSealed(plain)
	if err != nil {
		return nil, err
	}
	payload, err := s.OpenFromApp(sealed)
	if err != nil {
		return nil, err
	}
	modifiedOn, data, err := protocol.DecodeThing(string(payload))
	if err != nil {
		return nil, err
	}
	return &domain.Thing{
		StorageKey: s.Key(),
		ID:         thingID,
		Data:       data,
		ModifiedOn: modifiedOn,
	}, nil
}

// ThingExists answers YES or NO.
func (m *Manager) ThingExists(ctx context.Context, storageToken, thingID string) *protocol.Response {
	return m.inStorage(ctx, protocol.CmdExists, storageToken, func(s *domain.Storage) (*protocol.Response, error) {
		exists, err := m.db.ThingExists(ctx, s.Key(), thingID)
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.YesNo(exists)), nil
	})
}

// GetThingModifiedOn answers the thing's modification time in Unix
// microseconds.
func (m *Manager) GetThingModifiedOn(ctx context.Context, storageToken, thingID string) *protocol.Response {
	return m.inStorage(ctx, protocol.CmdGetModifiedOn, storageToken, func(s *domain.Storage) (*protocol.Response, error) {
		modifiedOn, err := m.db.GetThingModifiedOn(ctx, s.Key(), thingID)
		if err != nil {
			return nil, err
		}
		return protocol.OK(protocol.EncodeTime(modifiedOn)), nil
	})
}

// GetThingCopy answers "signature,payload" where the payload, encrypted
// for the app and signed by the storage, is "modifiedOn,base64(data)".
func (m *Manager) GetThingCopy(ctx context.Context, storageToken, thingID string) *protocol.Response {
	return m.inStorage(ctx, protocol.CmdGetACopy, storageToken, func(s *domain.Storage) (*protocol.Response, error) {
		modifiedOn, err := m.db.GetThingModifiedOn(ctx, s.Key(), thingID)
		if err != nil {
			return nil, err
		}
		data, err := m.db.GetThingCopy(ctx, s.Key(), thingID)
		if err != nil {
			return nil, err
		}
		sealed, err := s.SealForApp([]byte(protocol.EncodeThing(modifiedOn, data)))
		if err != nil {
			return nil, err
		}
		return protocol.OK(sealed.String()), nil
	})
}

// DiscardThing removes a thing. Discarding an absent thing succeeds.
func (m *Manager) DiscardThing(ctx context.Context, storageToken, thingID string) *protocol.Response {
	return m.inStorage(ctx, protocol.CmdDiscard, storageToken, func(s *domain.Storage) (*protocol.Response, error) {
		if err := m.db.DiscardThing(ctx, s.Key(), thingID); err != nil {
			return nil, err
		}
		return protocol.OK(), nil
	})
}

// FindThingIDs answers the ids matching pattern as a sealed list of
// escaped ids joined by "|", or a bare OK when nothing matches.
func (m *Manager) FindThingIDs(ctx context.Context, storageToken, pattern string) *protocol.Response {
	return m.inStorage(ctx, protocol.CmdFindIDs, storageToken, func(s *domain.Storage) (*protocol.Response, error) {
		found, err := m.db.FindThingIDs(ctx, s.Key(), pattern)
		if err != nil {
			return nil, err
		}
		ids := storage.ThingIDs(found)
		if len(ids) == 0 {
			return protocol.OK(), nil
		}
		sealed, err := s.SealForApp([]byte(protocol.JoinIDs(ids)))
		if err != nil {
			return nil, err
		}
		return protocol.OK(sealed.String()), nil
	})
}
