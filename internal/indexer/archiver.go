package indexer

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	apperrors "indexer/pkg/errors"
)

// Archiver stores transformed documents as record<token>.json at the root
// of fs. Writes truncate; nothing is ever deleted.
type Archiver struct {
	fs billy.Filesystem
}

// NewArchiver creates the storage root and its parents and checks it is a
// directory.
func NewArchiver(fs billy.Filesystem) (*Archiver, error) {
	if err := fs.MkdirAll(".", 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", fs.Root(), err)
	}
	info, err := fs.Stat(".")
	if err != nil {
		return nil, fmt.Errorf("stat storage dir %s: %w", fs.Root(), err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage path %s is not a directory", fs.Root())
	}
	return &Archiver{fs: fs}, nil
}

func (a *Archiver) Filesystem() billy.Filesystem {
	return a.fs
}

// Archive writes doc and returns the file name it used.
func (a *Archiver) Archive(token, doc string) (string, error) {
	name := ArchiveName(token)
	if err := util.WriteFile(a.fs, name, []byte(doc), 0o644); err != nil {
		return "", apperrors.ErrArchive.WithCause(fmt.Errorf("write %s: %w", name, err))
	}
	return name, nil
}

func (a *Archiver) Read(token string) ([]byte, error) {
	data, err := util.ReadFile(a.fs, ArchiveName(token))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.ErrNotFound.WithDetail("token", token)
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", token, err)
	}
	return data, nil
}
