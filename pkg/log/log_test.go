package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStdoutPathCreatesNoDirectory(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	// "stdout" 是指向标准输出的保留值，不是日志目录
	Init("info", "json", "stdout")
	Info("hello")

	_, err = os.Stat(filepath.Join(dir, "stdout"))
	assert.True(t, os.IsNotExist(err))
}

func TestInitEmptyPathCreatesNoDirectory(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })

	Init("info", "json", "")
	Info("hello")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInitFilePathWritesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	Init("info", "json", dir)
	Info("hello")
	Sync()

	_, err := os.Stat(filepath.Join(dir, "app.log"))
	assert.NoError(t, err)
}
