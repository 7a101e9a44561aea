package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/index"
)

func newTestConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.EmbeddingProvider = "local"
	cfg.EmbeddingModel = "static"
	cfg.Extensions = []string{".py"}
	return cfg
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestOpen_CreatesStateDirAndEngine(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")

	eng, err := Open(context.Background(), root, newTestConfig())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	assert.DirExists(t, filepath.Join(root, StateDirName))
	assert.Equal(t, root, eng.RootPath())
}

func TestIndex_ReportsNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")
	writeFile(t, root, "b.py", "def b():\n    pass\n")

	eng, err := Open(context.Background(), root, newTestConfig())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	stats, err := eng.Index(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesNew)
	assert.Equal(t, 2, stats.FilesScanned)
}

func TestIndex_SecondRunIsIncremental(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")

	eng, err := Open(context.Background(), root, newTestConfig())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	_, err = eng.Index(context.Background(), false)
	require.NoError(t, err)

	writeFile(t, root, "b.py", "def b():\n    pass\n")

	stats, err := eng.Index(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesNew)
}

func TestStaleStatus_DetectsUntrackedChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")

	eng, err := Open(context.Background(), root, newTestConfig())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	_, err = eng.Index(context.Background(), false)
	require.NoError(t, err)

	status, err := eng.StaleStatus()
	require.NoError(t, err)
	assert.False(t, status.IsStale)

	writeFile(t, root, "c.py", "def c():\n    pass\n")

	status, err = eng.StaleStatus()
	require.NoError(t, err)
	assert.True(t, status.IsStale)
}

func TestIndex_ConcurrentRunIsRejected(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")

	eng, err := Open(context.Background(), root, newTestConfig())
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()

	lock := index.NewRunLock(eng.StateDir())
	acquired, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = lock.Unlock() }()

	_, err = eng.Index(context.Background(), false)
	require.Error(t, err)
}
