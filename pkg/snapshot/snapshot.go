// Package snapshot persists and restores the backing data of an
// observable store. A snapshot is the JSON rendering of the store's root;
// restoring re-wraps it on a runtime so subscriptions and computeds
// attach to the revived data.
//
// Backends abstract where the bytes live. Memory is for tests and
// single-process use; S3 suits durable state shared across hosts.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/attune-dev/attune/pkg/reactive"
)

// ErrNotFound is returned by Load when no snapshot exists under the key.
var ErrNotFound = errors.New("attune: snapshot not found")

// Backend stores snapshot bytes under string keys.
type Backend interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// Take serializes the store's backing data and saves it under key.
// The store's data must be JSON-shaped, which holds for anything that
// went through Wrap.
func Take(ctx context.Context, store *reactive.Store, backend Backend, key string) error {
	data, err := json.Marshal(store.Root())
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}
	if err := backend.Save(ctx, key, data); err != nil {
		return fmt.Errorf("snapshot save %q: %w", key, err)
	}
	return nil
}

// Restore loads the snapshot under key and wraps it on rt. A nil rt uses
// the default runtime.
func Restore(ctx context.Context, rt *reactive.Runtime, backend Backend, key string) (*reactive.Store, error) {
	if rt == nil {
		rt = reactive.Default()
	}
	data, err := backend.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("snapshot unmarshal %q: %w", key, err)
	}
	return rt.Wrap(root)
}
