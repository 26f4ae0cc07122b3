package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "propfoto", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	cmd := rootCmd

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	cmd.SetArgs([]string{"--help"})
	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "enhancement")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	cmd := rootCmd

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	cmd.SetArgs([]string{"--version"})
	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "propfoto")
}

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"enhance", "batch", "config"} {
		assert.True(t, names[want], "subcommand %s is registered", want)
	}
}

func TestConfigPathsCommand(t *testing.T) {
	buf := new(bytes.Buffer)
	configPathsCmd.SetOut(buf)
	configPathsCmd.Run(configPathsCmd, nil)
	assert.Contains(t, buf.String(), ".")
}

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, isSupportedImage("photo.jpg"))
	assert.True(t, isSupportedImage("photo.JPEG"))
	assert.True(t, isSupportedImage("plan.png"))
	assert.True(t, isSupportedImage("pano.webp"))
	assert.False(t, isSupportedImage("notes.txt"))
	assert.False(t, isSupportedImage("archive.zip"))
	assert.False(t, isSupportedImage("photo"))
}

func TestDiscoverImageFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))

	for _, name := range []string{"a.jpg", "b.png", "ignore.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.webp"), []byte("x"), 0o644))

	flat, err := discoverImageFiles([]string{dir}, false)
	require.NoError(t, err)
	assert.Len(t, flat, 2, "non-recursive discovery skips nested directories")

	deep, err := discoverImageFiles([]string{dir}, true)
	require.NoError(t, err)
	assert.Len(t, deep, 3)

	single, err := discoverImageFiles([]string{filepath.Join(dir, "a.jpg")}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg")}, single)

	_, err = discoverImageFiles([]string{filepath.Join(dir, "missing.jpg")}, false)
	assert.Error(t, err)
}
