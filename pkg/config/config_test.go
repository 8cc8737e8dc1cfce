package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func TestExpand(t *testing.T) {
	t.Setenv("PAPERASSE_TEST_SET", "value")
	t.Setenv("PAPERASSE_TEST_EMPTY", "")

	assert.Equal(t, "value", Expand("${PAPERASSE_TEST_SET}"))
	assert.Equal(t, "value", Expand("$PAPERASSE_TEST_SET"))
	assert.Equal(t, "value", Expand("${PAPERASSE_TEST_SET:-other}"))
	assert.Equal(t, "other", Expand("${PAPERASSE_TEST_EMPTY:-other}"))
	assert.Equal(t, "8080", Expand("${PAPERASSE_TEST_UNSET:-8080}"))
	assert.Equal(t, "", Expand("${PAPERASSE_TEST_UNSET}"))
}

func TestDecodeKeepsDefaults(t *testing.T) {
	s := &sample{Name: "default", Port: 1}
	require.NoError(t, Decode([]byte("port: ${PAPERASSE_TEST_UNSET:-9000}\n"), s))
	assert.Equal(t, "default", s.Name)
	assert.Equal(t, 9000, s.Port)
}

func TestDecodeValidates(t *testing.T) {
	err := Decode([]byte("port: -1\n"), &sample{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be positive")
}

func TestLoadMissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "absent.yaml"), &sample{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()

	s := &sample{Port: 1}
	found, err := LoadOptional(filepath.Join(dir, "absent.yaml"), s)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, s.Port)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nport: 2\n"), 0o600))
	found, err = LoadOptional(path, s)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "file", s.Name)
	assert.Equal(t, 2, s.Port)
}
