package filestore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) Store {
	t.Helper()
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStore_SaveOpenRoundTrip(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()
	key := Key("kb", "source-1")

	require.NoError(t, store.Save(ctx, key, strings.NewReader("document body"), int64(len("document body"))))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "document body", string(data))
}

func TestLocalStore_SaveOverwrites(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()
	key := Key("kb", "source-1")

	require.NoError(t, store.Save(ctx, key, strings.NewReader("old"), 3))
	require.NoError(t, store.Save(ctx, key, strings.NewReader("new"), 3))

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()

	err := store.Save(ctx, "../escape.txt", strings.NewReader("x"), 1)
	require.Error(t, err)
	_, err = store.Open(ctx, "kb/../../etc/passwd")
	require.Error(t, err)
}

func TestLocalStore_RemoveIsIdempotent(t *testing.T) {
	store := newLocal(t)
	ctx := context.Background()
	key := Key("kb", "source-1")

	require.NoError(t, store.Save(ctx, key, strings.NewReader("x"), 1))
	require.NoError(t, store.Remove(ctx, key))
	require.NoError(t, store.Remove(ctx, key))

	_, err := store.Open(ctx, key)
	require.Error(t, err)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("ftp", nil)
	require.Error(t, err)
	_, err = New("", nil)
	require.Error(t, err)
}

func TestLocalStore_URL(t *testing.T) {
	store := newLocal(t)
	key := Key("kb", "src1")

	url := store.URL(key, "http://host:8080/")
	require.Equal(t, "http://host:8080/api/v1/databases/kb/documents/src1", url)
}

func TestLocalStore_URLPublicOverride(t *testing.T) {
	store, err := New("local", map[string]interface{}{
		"dir":        t.TempDir(),
		"public_url": "https://cdn.example.com/archive/",
	})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/archive/kb/src1.txt", store.URL(Key("kb", "src1"), "http://host"))
}
