package profile

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.False(t, p.LoggedIn())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "remindctl.yaml")
	in := &Profile{Server: " http://localhost:3000/ ", Username: "alice", Token: "tok"}
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &Profile{Server: "http://localhost:3000", Username: "alice", Token: "tok"}, out)
	assert.True(t, out.LoggedIn())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remindctl.yaml")
	require.NoError(t, Save(path, &Profile{Server: "http://a", Username: "alice", Token: "tok"}))
	require.NoError(t, Save(path, &Profile{Server: "http://a", Username: "alice"}))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, out.Token)
	assert.False(t, out.LoggedIn())
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultPathEnv(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/custom.yaml")
	p, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", p)
}

func TestSaveRejectsEmpty(t *testing.T) {
	assert.Error(t, Save("", &Profile{}))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil))
}
