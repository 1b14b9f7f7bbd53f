package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/KeplerC/fog-rtx/internal/domain"
)

// Local reads objects from a directory tree. Keys use forward slashes.
type Local struct {
	root string
}

// NewLocal returns a Local bucket rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// Open opens root/key.
func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, domain.ErrValidation("key %q escapes the source root", key)
	}
	f, err := os.Open(filepath.Join(l.root, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound("object %q not found in %s", key, l.root)
		}
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return f, nil
}

func (l *Local) String() string { return l.root }

// Close is a no-op.
func (l *Local) Close() error { return nil }
