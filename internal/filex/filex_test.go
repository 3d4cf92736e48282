package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_Creates(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "data", "household", "finvault.db")

	require.NoError(t, EnsureParentDir(path))

	fi, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, fi.IsDir())
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}

	require.NoError(t, EnsureParentDir(path), "idempotent")
	require.NoError(t, EnsureParentDir("finvault.db"))
}

func TestEnsureParentDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := EnsureParentDir(filepath.Join(blocker, "finvault.db"))
	require.Error(t, err)
}

func TestSQLiteFilePath(t *testing.T) {
	tests := []struct {
		dsn    string
		want   string
		isFile bool
	}{
		{"finvault.db", "finvault.db", true},
		{"/var/lib/finvault/vault.db", "/var/lib/finvault/vault.db", true},
		{"file:data/vault.db?_pragma=foreign_keys(1)", "data/vault.db", true},
		{"file:test?mode=memory&cache=shared", "", false},
		{":memory:", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			got, ok := SQLiteFilePath(tt.dsn)
			assert.Equal(t, tt.isFile, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
