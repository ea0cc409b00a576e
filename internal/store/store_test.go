package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client", "livechat.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestTokenRoundTrip(t *testing.T) {
	s, _ := openTemp(t)

	_, ok := s.Token()
	assert.False(t, ok, "fresh store should have no token")

	require.NoError(t, s.SetToken("t1"))
	tok, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "t1", tok)

	// Most recent write wins.
	require.NoError(t, s.SetToken("t2"))
	tok, _ = s.Token()
	assert.Equal(t, "t2", tok)
}

func TestClearToken(t *testing.T) {
	s, _ := openTemp(t)

	require.NoError(t, s.SetToken("t1"))
	require.NoError(t, s.ClearToken())

	_, ok := s.Token()
	assert.False(t, ok, "token should be gone after clear")

	// Clearing an absent token is a no-op.
	require.NoError(t, s.ClearToken())
}

func TestTokenSurvivesReopen(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.SetToken("persisted"))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	tok, ok := s2.Token()
	assert.True(t, ok)
	assert.Equal(t, "persisted", tok)
}

func TestGenericKeys(t *testing.T) {
	s, _ := openTemp(t)

	require.NoError(t, s.Set("nick", "alice"))
	require.NoError(t, s.Set("theme", "dark"))

	v, ok := s.Get("nick")
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	require.NoError(t, s.Delete("nick"))
	_, ok = s.Get("nick")
	assert.False(t, ok)

	// Other keys are untouched.
	v, ok = s.Get("theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", v)
}
