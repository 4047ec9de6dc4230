// Package database manages the lifecycle of named knowledge bases on
// top of an index backend.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/mtrtrdev/localQA/internal/index"
	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

const maxNameLength = 64

// ValidateName rejects names that could escape the backend namespace.
// Memory databases become directories and qdrant databases become
// collections, so the rules are the intersection of both.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", errs.ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", errs.ErrInvalidName, maxNameLength)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q is reserved", errs.ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", errs.ErrInvalidName, name)
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			r == '-' || r == '_' || r == '.' {
			continue
		}
		return fmt.Errorf("%w: %q contains %q", errs.ErrInvalidName, name, r)
	}
	return nil
}

// Manager validates names and delegates to the configured backend.
type Manager struct {
	provider index.Provider
}

func NewManager(provider index.Provider) *Manager {
	return &Manager{provider: provider}
}

func (m *Manager) Create(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return m.provider.Create(ctx, name)
}

func (m *Manager) Open(ctx context.Context, name string) (index.Index, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return m.provider.Open(ctx, name)
}

func (m *Manager) List(ctx context.Context) ([]model.DatabaseInfo, error) {
	return m.provider.List(ctx)
}

func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return m.provider.Drop(ctx, name)
}

// Clear removes every entry of a database but keeps the database itself.
func (m *Manager) Clear(ctx context.Context, name string) error {
	idx, err := m.Open(ctx, name)
	if err != nil {
		return err
	}
	return idx.DeleteAll(ctx)
}
