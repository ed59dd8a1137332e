package engine

import (
	"context"
	"sort"
	"strings"
)

// LibraryEntry is a shared library item (a reusable flow, function body or
// template) with optional metadata. Library entries are shared-store backed
// for every role; there is no local copy.
type LibraryEntry struct {
	Meta map[string]any `json:"meta,omitempty"`
	Body string         `json:"body"`
}

// SaveLibraryEntry stores an entry of entryType at path.
func (e *Engine) SaveLibraryEntry(ctx context.Context, entryType, path string, entry LibraryEntry) error {
	data, err := e.codec.Encode(entry)
	if err != nil {
		return err
	}
	return e.shared.Set(ctx, e.keys.Library(entryType, path), data, 0)
}

// LibraryEntry fetches a single entry. Missing entries are (nil, false, nil).
func (e *Engine) LibraryEntry(ctx context.Context, entryType, path string) (*LibraryEntry, bool, error) {
	data, found, err := e.shared.Get(ctx, e.keys.Library(entryType, path))
	if err != nil || !found {
		return nil, false, err
	}
	var entry LibraryEntry
	if err := e.codec.Decode(data, &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

// ListLibraryEntries lists entry paths under dir, relative to dir, in
// lexical order.
func (e *Engine) ListLibraryEntries(ctx context.Context, entryType, dir string) ([]string, error) {
	if dir != "" && !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	prefix := e.keys.LibraryPrefix(entryType, dir)

	keys, err := e.shared.KeysWithPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	entries := make([]string, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(entries)
	return entries, nil
}
