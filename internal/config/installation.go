package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// installationIDFile holds the id sent as X-ZUMO-INSTALLATION-ID.
const installationIDFile = "installation-id"

// InstallationID returns the id identifying this installation to Mobile
// Services. It is generated on first use and stored in dataDir; later
// calls return the stored value. A corrupt file is replaced.
func InstallationID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, installationIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("reading installation id: %w", err)
	}

	id := uuid.NewString()

	if err := writeAtomic(path, []byte(id+"\n")); err != nil {
		return "", fmt.Errorf("saving installation id: %w", err)
	}

	return id, nil
}

// writeAtomic writes data to path via a temp file in the same directory
// and a rename, so readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".installation-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("writing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming: %w", err)
	}

	return nil
}
