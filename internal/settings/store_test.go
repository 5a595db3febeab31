package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDefaultsAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")
	s, err := Open(path, map[string]bool{"enable_RegExp": true, "enable_transDesc": false})
	require.NoError(t, err)

	assert.True(t, s.Bool("enable_RegExp", false))
	assert.False(t, s.Bool("enable_transDesc", true))
	assert.True(t, s.Bool("unknown", true))

	require.NoError(t, s.SetBool("enable_RegExp", false))
	assert.False(t, s.Bool("enable_RegExp", true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "enable_RegExp: false")

	reopened, err := Open(path, map[string]bool{"enable_RegExp": true})
	require.NoError(t, err)
	assert.False(t, reopened.Bool("enable_RegExp", true))

	entries := reopened.All()
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Key: "enable_RegExp", Value: false, Stored: true}, entries[0])
}

func TestSubscribe(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "s.yaml"), nil)
	require.NoError(t, err)

	var got []string
	cancel := s.Subscribe(func(key string, value bool) {
		if value {
			got = append(got, key+"=on")
		} else {
			got = append(got, key+"=off")
		}
	})

	require.NoError(t, s.SetBool("a", true))
	require.NoError(t, s.SetBool("b", false))
	cancel()
	require.NoError(t, s.SetBool("c", true))

	assert.Equal(t, []string{"a=on", "b=off"}, got)
}

func TestOpenInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enable_RegExp: [1, 2"), 0o644))
	_, err := Open(path, nil)
	assert.Error(t, err)
}

func TestSetBoolFailureKeepsOldValue(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "sub", "settings.yaml"), nil)
	require.NoError(t, err)

	// 设置目录的位置被普通文件占用，保存必然失败
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub"), nil, 0o644))

	called := false
	s.Subscribe(func(string, bool) { called = true })
	assert.Error(t, s.SetBool("x", true))
	assert.False(t, s.Bool("x", false))
	assert.False(t, called)
}
