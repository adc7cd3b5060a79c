package catalog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	corecatalog "github.com/kilianp07/obsched/core/catalog"
)

// Library moves media files on the local file system.
type Library struct{}

var _ corecatalog.MediaFiles = Library{}

// Rename moves dir/oldName to dir/newName.
func (Library) Rename(dir, oldName, newName string) error {
	src, dst := filepath.Join(dir, oldName), filepath.Join(dir, newName)
	if exists(dst) {
		return fmt.Errorf("%w: %s exists", corecatalog.ErrNameTaken, newName)
	}
	if !exists(src) {
		return nil
	}
	return moveFile(src, dst)
}

// Archive moves dir/name into archiveDir. An existing file of the same name
// in the archive makes it pick "name (n).ext".
func (Library) Archive(dir, name, archiveDir string) (string, error) {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}
	target := freeName(archiveDir, name)
	src := filepath.Join(dir, name)
	if !exists(src) {
		return target, nil
	}
	if err := moveFile(src, target); err != nil {
		return "", err
	}
	return target, nil
}

func freeName(dir, name string) string {
	target := filepath.Join(dir, name)
	if !exists(target) {
		return target
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if !exists(cand) {
			return cand
		}
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return !errors.Is(err, fs.ErrNotExist)
}

// moveFile renames src to dst, copying across file systems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
