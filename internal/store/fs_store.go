package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/canvaslabs/canvas/internal/domain"
)

// FSStore keeps originals as files named by their content hash under a
// single root directory. All coordination between concurrent writers relies
// on the atomicity of rename.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash := HashBytes(data)
	target := filepath.Join(s.root, hash)

	if _, err := os.Stat(target); err == nil {
		return hash, nil
	}

	tmp, err := os.CreateTemp(s.root, "."+hash+".*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	// Rename is atomic; a concurrent Put of the same bytes lands on an
	// identical file either way.
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return hash, nil
}

func (s *FSStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, hash)
	}

	data, err := os.ReadFile(filepath.Join(s.root, hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, hash)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return data, nil
}
