package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"clustersync/pkg/payload"
)

// BadgerStore persists categories as keys in a BadgerDB. It is the backend
// of choice when the process owns many small documents and the file-per-
// category layout becomes a bottleneck.
type BadgerStore struct {
	db *badger.DB
}

const (
	badgerFlowsKey       = "flows"
	badgerCredentialsKey = "credentials"
	badgerSettingsKey    = "settings"
	badgerSessionsKey    = "sessions"
)

// NewBadgerStore opens (or creates) a Badger database at dataDir.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dataDir).
		WithLogger(nil).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) get(key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			value = append([]byte{}, val...)
			return nil
		})
	})
	return value, found, err
}

func (s *BadgerStore) set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *BadgerStore) Flows(ctx context.Context) (*payload.Payload, error) {
	_ = ctx
	data, found, err := s.get(badgerFlowsKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return payload.Empty(), nil
	}
	return payload.Decode(data)
}

func (s *BadgerStore) SaveFlows(ctx context.Context, p *payload.Payload) error {
	_ = ctx
	data, err := p.Encode()
	if err != nil {
		return err
	}
	return s.set(badgerFlowsKey, data)
}

func (s *BadgerStore) Credentials(ctx context.Context) (map[string]any, error) {
	return s.readObject(ctx, badgerCredentialsKey)
}

func (s *BadgerStore) SaveCredentials(ctx context.Context, creds map[string]any) error {
	return s.writeObject(ctx, badgerCredentialsKey, creds)
}

func (s *BadgerStore) Settings(ctx context.Context) (map[string]any, error) {
	return s.readObject(ctx, badgerSettingsKey)
}

func (s *BadgerStore) SaveSettings(ctx context.Context, settings map[string]any) error {
	return s.writeObject(ctx, badgerSettingsKey, settings)
}

func (s *BadgerStore) Sessions(ctx context.Context) (map[string]any, error) {
	return s.readObject(ctx, badgerSessionsKey)
}

func (s *BadgerStore) SaveSessions(ctx context.Context, sessions map[string]any) error {
	return s.writeObject(ctx, badgerSessionsKey, sessions)
}

func (s *BadgerStore) readObject(ctx context.Context, key string) (map[string]any, error) {
	_ = ctx
	data, found, err := s.get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

func (s *BadgerStore) writeObject(ctx context.Context, key string, obj map[string]any) error {
	_ = ctx
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.set(key, data)
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
