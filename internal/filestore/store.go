// Package filestore archives the raw extracted text of ingested
// documents so a database can be rebuilt or audited later. Keys are
// "<database>/<source_id>.txt".
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

type Store interface {
	Type() string
	// URL renders a browser-reachable address for the key, using
	// baseURL when the backend has no public endpoint of its own.
	URL(key, baseURL string) string
	Save(ctx context.Context, key string, r io.ReadSeeker, size int64) error
	// Open streams the archived object; backends without read access
	// return an error and callers fall back to URL redirection.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes the archived object, best effort.
	Remove(ctx context.Context, key string) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(storeType string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(storeType))
	if key == "" {
		return nil, fmt.Errorf("archive.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported archive store type: %s", storeType)
	}
	return factory(args)
}

// Key builds the canonical archive key for a document.
func Key(database, sourceID string) string {
	return database + "/" + sourceID + ".txt"
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (database, sourceID string) {
	key = strings.TrimSuffix(strings.TrimPrefix(key, "/"), ".txt")
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
