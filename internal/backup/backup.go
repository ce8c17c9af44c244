// Package backup preserves an existing output file before a run replaces it.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"remapflame/internal/errors"
)

// Manager copies files aside before they are overwritten.
type Manager struct {
	enabled bool
	now     func() time.Time
}

// NewBackupManager creates a Manager. A disabled manager never touches the disk.
func NewBackupManager(enabled bool) *Manager {
	return &Manager{
		enabled: enabled,
		now:     time.Now,
	}
}

// BackupFile copies filePath to a timestamped sibling and returns its path.
// It returns an empty path when backups are disabled or filePath does not exist yet.
func (bm *Manager) BackupFile(filePath string) (string, error) {
	if !bm.enabled {
		return "", nil
	}

	srcInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewBackupError(filePath, "failed to stat file", err)
	}

	srcFile, err := os.Open(filePath)
	if err != nil {
		return "", errors.NewBackupError(filePath, "failed to open source file", err)
	}
	defer srcFile.Close()

	backupPath := bm.backupPath(filePath)
	dstFile, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return "", errors.NewBackupError(backupPath, "failed to create backup file", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		_ = os.Remove(backupPath)
		return "", errors.NewBackupError(backupPath, "failed to copy file content", err)
	}
	if err := dstFile.Close(); err != nil {
		_ = os.Remove(backupPath)
		return "", errors.NewBackupError(backupPath, "failed to close backup file", err)
	}

	return backupPath, nil
}

func (bm *Manager) backupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	timestamp := bm.now().Format("20060102_150405")

	return filepath.Join(dir, fmt.Sprintf("%s.%s.bak", base, timestamp))
}
