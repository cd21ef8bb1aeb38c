package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFile), []byte("{}"), 0o644))
	return dir
}

func TestFindConfigDir(t *testing.T) {
	envDir := writeConfig(t)
	execDir := writeConfig(t)
	empty := t.TempDir()

	assert.Equal(t, envDir, findConfigDir(envDir, execDir))
	assert.Equal(t, execDir, findConfigDir(empty, execDir))
	assert.Equal(t, execDir, findConfigDir("", execDir))
	assert.Equal(t, "", findConfigDir(empty, empty))
	assert.Equal(t, "", findConfigDir("", ""))
}
