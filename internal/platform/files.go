package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Output container extension
const (
	OutputExtensionMP4 = ".mp4"
)

// EnsureDir creates the directory if it doesn't exist.
func EnsureDir(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// JobFilePath returns a collision-free output path for one job. The name
// combines the chat identity with a fresh UUID so two workers processing
// jobs for the same chat in rapid succession never share a file.
func JobFilePath(dir string, chatID int64) string {
	name := fmt.Sprintf("%d-%s%s", chatID, uuid.NewString(), OutputExtensionMP4)
	return filepath.Join(dir, name)
}

// Remove deletes the file at path. A missing file is not an error, so the
// cleanup step of the pipeline can run on every exit path and more than once.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
