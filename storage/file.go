package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"clustersync/pkg/payload"
)

// FileStore persists each category as one JSON document under a data
// directory. This is the default backend and matches the layout the host
// runtime itself uses for its user directory.
type FileStore struct {
	dir string
}

const (
	flowsFile       = "flows.json"
	credentialsFile = "credentials.json"
	settingsFile    = "settings.json"
	sessionsFile    = "sessions.json"
)

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Flows(ctx context.Context) (*payload.Payload, error) {
	_ = ctx
	data, err := os.ReadFile(filepath.Join(s.dir, flowsFile))
	if os.IsNotExist(err) {
		return payload.Empty(), nil
	}
	if err != nil {
		return nil, err
	}
	return payload.Decode(data)
}

func (s *FileStore) SaveFlows(ctx context.Context, p *payload.Payload) error {
	_ = ctx
	data, err := p.Encode()
	if err != nil {
		return err
	}
	return s.writeAtomic(flowsFile, data)
}

func (s *FileStore) Credentials(ctx context.Context) (map[string]any, error) {
	return s.readObject(ctx, credentialsFile)
}

func (s *FileStore) SaveCredentials(ctx context.Context, creds map[string]any) error {
	return s.writeObject(ctx, credentialsFile, creds)
}

func (s *FileStore) Settings(ctx context.Context) (map[string]any, error) {
	return s.readObject(ctx, settingsFile)
}

func (s *FileStore) SaveSettings(ctx context.Context, settings map[string]any) error {
	return s.writeObject(ctx, settingsFile, settings)
}

func (s *FileStore) Sessions(ctx context.Context) (map[string]any, error) {
	return s.readObject(ctx, sessionsFile)
}

func (s *FileStore) SaveSessions(ctx context.Context, sessions map[string]any) error {
	return s.writeObject(ctx, sessionsFile, sessions)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readObject(ctx context.Context, name string) (map[string]any, error) {
	_ = ctx
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

func (s *FileStore) writeObject(ctx context.Context, name string, obj map[string]any) error {
	_ = ctx
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	return s.writeAtomic(name, data)
}

// writeAtomic writes via a temp file and rename so a crashed save never
// leaves a truncated document behind.
func (s *FileStore) writeAtomic(name string, data []byte) error {
	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
