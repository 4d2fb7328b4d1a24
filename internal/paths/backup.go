package paths

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/conorfennell/ankitab/internal/domain"
)

// BackupFolderName is the folder next to a database that holds backups.
const BackupFolderName = "backups"

// BackupFileName returns the name of a backup taken at t.
func BackupFileName(t time.Time) string {
	return "backup-ankitab-" + t.Format("2006-01-02-15.04.05.000000") + ".anki2"
}

// BackupFolder returns the backup folder belonging to the database at dbPath.
// With mustExist the folder has to exist already.
func BackupFolder(dbPath string, mustExist bool) (string, error) {
	info, err := os.Stat(dbPath)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: database %s", domain.ErrPathNotFound, dbPath)
	}
	folder := filepath.Join(filepath.Dir(dbPath), BackupFolderName)
	if mustExist {
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			return "", fmt.Errorf("%w: backup folder %s, give a custom one", domain.ErrPathNotFound, folder)
		}
	}
	return folder, nil
}

// Backup copies the database into folder, or into its backup folder when
// folder is empty, and returns the path of the copy.
func Backup(dbPath, folder string, now time.Time) (string, error) {
	if folder == "" {
		f, err := BackupFolder(dbPath, true)
		if err != nil {
			return "", err
		}
		folder = f
	} else if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup folder %s: %w", folder, err)
	}
	dest := filepath.Join(folder, BackupFileName(now))
	if err := copyFile(dbPath, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// copyFile copies contents, permissions and modification time.
func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrPathNotFound, src)
		}
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create backup %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close backup %s: %w", dest, cerr)
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}
