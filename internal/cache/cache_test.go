package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/runid"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	id := runid.New()

	require.NoError(t, store.Save("identify_service", id, []byte(`{"services": []}`)))

	got, err := store.Load("identify_service", id)
	require.NoError(t, err)
	assert.Equal(t, `{"services": []}`, string(got))
}

func TestLoadMissingReturnsErrNotFound(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Load("identify_service", runid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveReplacesPreviousValue(t *testing.T) {
	store := New(t.TempDir())
	id := runid.New()

	require.NoError(t, store.Save("stage", id, []byte("first")))
	require.NoError(t, store.Save("stage", id, []byte("second")))

	got, err := store.Load("stage", id)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestKeysAreIndependent(t *testing.T) {
	store := New(t.TempDir())
	a, b := runid.New(), runid.New()

	require.NoError(t, store.Save("stage", a, []byte("for a")))

	_, err := store.Load("stage", b)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load("other_stage", a)
	assert.ErrorIs(t, err, ErrNotFound)
}
