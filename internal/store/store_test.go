package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingKeyReturnsEmpty(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("nope")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSetThenGet(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(KeyCredential, "hunter2"))

	v, err := s.Credential()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)
}

func TestSetOverwrites(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", "one"))
	require.NoError(t, s.Set("k", "two"))

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyCredential, "persisted"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.Credential()
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}
