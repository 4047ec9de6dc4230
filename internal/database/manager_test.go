package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtrtrdev/localQA/internal/index/memory"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	provider, err := memory.NewProvider(map[string]interface{}{"dir": t.TempDir()}, 2)
	require.NoError(t, err)
	return NewManager(provider)
}

func TestValidateName(t *testing.T) {
	valid := []string{"kb", "my-project", "notes_2026", "v1.2", "A"}
	for _, name := range valid {
		require.NoError(t, ValidateName(name), "expected %q to be valid", name)
	}

	invalid := []string{
		"",
		".",
		"..",
		"a/b",
		`a\b`,
		"../escape",
		"white space",
		"emoji🙂",
		strings.Repeat("x", 65),
	}
	for _, name := range invalid {
		err := ValidateName(name)
		require.True(t, errors.Is(err, errs.ErrInvalidName), "expected %q to be invalid", name)
	}
}

func TestManager_LifecycleEnforcesNames(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.True(t, errors.Is(m.Create(ctx, "../oops"), errs.ErrInvalidName))
	_, err := m.Open(ctx, "a/b")
	require.True(t, errors.Is(err, errs.ErrInvalidName))
	require.True(t, errors.Is(m.Delete(ctx, ""), errs.ErrInvalidName))
	require.True(t, errors.Is(m.Clear(ctx, ".."), errs.ErrInvalidName))

	require.NoError(t, m.Create(ctx, "kb"))
	require.True(t, errors.Is(m.Create(ctx, "kb"), errs.ErrConflict))

	infos, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "kb", infos[0].Name)

	require.NoError(t, m.Clear(ctx, "kb"))
	require.NoError(t, m.Delete(ctx, "kb"))
	require.True(t, errors.Is(m.Delete(ctx, "kb"), errs.ErrNotFound))
}

func TestManager_NamesAreCaseSensitive(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	require.NoError(t, m.Create(ctx, "Notes"))
	require.NoError(t, m.Create(ctx, "notes"))

	infos, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
}
