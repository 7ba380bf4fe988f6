package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestEnsureSubdDir_CreatesDataDirInCWD(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)

	got, err := EnsureSubdDir("data")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tmp, "data"), got)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700,
			"local database dir must be owner-accessible")
	}
}

func TestEnsureSubdDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)

	first, err := EnsureSubdDir("data")
	require.NoError(t, err)

	// A second client start must reuse the directory, not fail.
	second, err := EnsureSubdDir("data")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureSubdDir_FailsWhenBlockedByFile(t *testing.T) {
	tmp := t.TempDir()
	chdir(t, tmp)

	require.NoError(t, os.WriteFile("data", []byte("not a dir"), 0o660))

	_, err := EnsureSubdDir("data")
	require.Error(t, err)
}
