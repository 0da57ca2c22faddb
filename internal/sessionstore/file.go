package sessionstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePerms restricts session files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the sessions directory.
const DirPerms = 0o700

// FileStore keeps one JSON file per profile in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, normally
// config.SessionDir(). The directory is created on first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the file holding profile's record.
func (s *FileStore) Path(profile string) string {
	return filepath.Join(s.dir, profile+".json")
}

// Load reads the profile's record. Returns (nil, nil) if the file does not
// exist.
func (s *FileStore) Load(profile string) (*Record, error) {
	if err := checkFileProfile(profile); err != nil {
		return nil, err
	}

	return readFile(s.Path(profile))
}

// Save writes the record atomically (write-to-temp + rename) with 0600
// permissions.
func (s *FileStore) Save(profile string, rec *Record) error {
	if err := checkFileProfile(profile); err != nil {
		return err
	}

	data, err := encode(rec)
	if err != nil {
		return err
	}

	return writeFileAtomic(s.Path(profile), data)
}

// Delete removes the profile's file.
func (s *FileStore) Delete(profile string) error {
	if err := checkFileProfile(profile); err != nil {
		return err
	}

	path := s.Path(profile)

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("sessionstore: removing %s: %w", path, err)
	}

	return nil
}

func readFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("sessionstore: reading %s: %w", path, err)
	}

	return decode(data, path)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("sessionstore: creating directory %s: %w", dir, err)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("sessionstore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionstore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionstore: writing: %w", err)
	}

	// Flush before rename so a crash cannot leave a partial session file.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sessionstore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sessionstore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("sessionstore: renaming: %w", err)
	}

	success = true

	return nil
}
