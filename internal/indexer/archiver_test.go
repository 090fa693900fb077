package indexer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "indexer/pkg/errors"
)

// readOnlyFS refuses every file open, standing in for a full or read-only disk.
type readOnlyFS struct {
	billy.Filesystem
}

func (readOnlyFS) OpenFile(string, int, os.FileMode) (billy.File, error) {
	return nil, errors.New("read-only file system")
}

func TestArchiver_RoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "records")
	a, err := NewArchiver(osfs.New(root))
	require.NoError(t, err)

	doc := `{"name":"T","yr":2020}`
	name, err := a.Archive("10_123_abc", doc)
	require.NoError(t, err)
	assert.Equal(t, "record10_123_abc.json", name)

	onDisk, err := os.ReadFile(filepath.Join(root, name))
	require.NoError(t, err)
	assert.Equal(t, doc, string(onDisk))

	read, err := a.Read("10_123_abc")
	require.NoError(t, err)
	assert.Equal(t, doc, string(read))
}

func TestArchiver_OverwritesShorterContent(t *testing.T) {
	a, err := NewArchiver(osfs.New(t.TempDir()))
	require.NoError(t, err)

	_, err = a.Archive("tok", `{"name":"a much longer document"}`)
	require.NoError(t, err)
	_, err = a.Archive("tok", `{}`)
	require.NoError(t, err)

	read, err := a.Read("tok")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(read))
}

func TestArchiver_ReadMissing(t *testing.T) {
	a, err := NewArchiver(osfs.New(t.TempDir()))
	require.NoError(t, err)

	_, err = a.Read("absent")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestArchiver_WriteFailure(t *testing.T) {
	a, err := NewArchiver(readOnlyFS{osfs.New(t.TempDir())})
	require.NoError(t, err)

	_, err = a.Archive("tok", `{}`)
	assert.ErrorIs(t, err, apperrors.ErrArchive)
}

func TestNewArchiver_RootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := NewArchiver(osfs.New(file))
	assert.Error(t, err)
}
