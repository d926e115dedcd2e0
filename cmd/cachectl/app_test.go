package main

import (
	"bytes"
	"testing"

	"github.com/couchcryptid/member-locator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seededApp returns an app over a cache directory holding a few entries.
func seededApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	s, err := store.Open(dir)
	require.NoError(t, err)
	for _, k := range []store.Key{
		store.NewKey(store.NamespaceNominatim, "münchen", "de"),
		store.NewKey(store.NamespaceNominatim, "ottenhofen b. münchen", "de"),
		store.NewKey(store.NamespaceNominatim, "nrw", "de"),
		store.NewKey(store.NamespaceUserDetails, "12"),
		store.NewKey(store.NamespaceUserDetails, "34"),
	} {
		require.NoError(t, s.Set(k, map[string]string{"k": "v"}, 0))
	}
	require.NoError(t, s.Close())

	var out bytes.Buffer
	a := newApp(&out)
	a.dir = dir
	return a, &out
}

func execute(t *testing.T, a *app, args ...string) error {
	t.Helper()
	root := newRootCmd(a)
	dir := a.dir
	root.SetArgs(append(args, "--dir", dir))
	return root.Execute()
}

func countKeys(t *testing.T, dir, ns string) int {
	t.Helper()
	s, err := store.Open(dir, store.WithReadOnly())
	require.NoError(t, err)
	defer s.Close()

	n := 0
	for _, err := range s.Keys(ns) {
		require.NoError(t, err)
		n++
	}
	return n
}

func TestStats(t *testing.T) {
	a, out := seededApp(t)

	require.NoError(t, execute(t, a, "stats"))

	assert.Contains(t, out.String(), "nominatim")
	assert.Contains(t, out.String(), "user_details")
	assert.Contains(t, out.String(), "Total")
}

func TestList(t *testing.T) {
	a, out := seededApp(t)

	require.NoError(t, execute(t, a, "list", "nominatim"))

	assert.Contains(t, out.String(), "('nominatim', 'münchen', 'de')")
	assert.NotContains(t, out.String(), "user_details")
}

func TestList_UnknownNamespace(t *testing.T) {
	a, _ := seededApp(t)

	err := execute(t, a, "list", "geocoder")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown namespace")
}

func TestEvict(t *testing.T) {
	a, out := seededApp(t)

	require.NoError(t, execute(t, a, "evict", "nominatim", "Ottenhofen"))

	assert.Contains(t, out.String(), "1 entries deleted from nominatim")
	assert.Equal(t, 2, countKeys(t, a.dir, store.NamespaceNominatim))
}

func TestPruneShort(t *testing.T) {
	a, out := seededApp(t)

	require.NoError(t, execute(t, a, "prune-short", "nominatim"))

	assert.Contains(t, out.String(), "1 entries deleted")
	assert.Equal(t, 2, countKeys(t, a.dir, store.NamespaceNominatim))
}

func TestPurge(t *testing.T) {
	a, _ := seededApp(t)

	require.NoError(t, execute(t, a, "purge", "user_details"))

	assert.Zero(t, countKeys(t, a.dir, store.NamespaceUserDetails))
	assert.Equal(t, 3, countKeys(t, a.dir, store.NamespaceNominatim))
}

func TestThin(t *testing.T) {
	a, out := seededApp(t)

	require.NoError(t, execute(t, a, "thin", "nominatim", "100"))

	assert.Contains(t, out.String(), "3 entries deleted")
	assert.Zero(t, countKeys(t, a.dir, store.NamespaceNominatim))
}

func TestThin_BadPercent(t *testing.T) {
	a, _ := seededApp(t)

	assert.Error(t, execute(t, a, "thin", "nominatim", "150"))
	assert.Error(t, execute(t, a, "thin", "nominatim", "lots"))
}

func TestDeleteUser(t *testing.T) {
	a, out := seededApp(t)

	require.NoError(t, execute(t, a, "delete-user", "12", "99"))

	assert.Contains(t, out.String(), "no cached details for member 99")
	assert.Contains(t, out.String(), "1 members forgotten")
	assert.Equal(t, 1, countKeys(t, a.dir, store.NamespaceUserDetails))
}
