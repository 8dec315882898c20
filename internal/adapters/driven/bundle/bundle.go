// Package bundle reads and writes index bundle directories: a manifest.yaml
// describing the index plus whatever data files the backend needs.
package bundle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/askmydocs/internal/core/domain"
)

const (
	// ManifestFile is the name of the manifest inside a bundle directory
	ManifestFile = "manifest.yaml"

	// FormatVersion is bumped whenever the on-disk layout changes
	FormatVersion = 1
)

// Manifest describes a persisted index.
type Manifest struct {
	Version   int                     `yaml:"version"`
	Backend   string                  `yaml:"backend"`
	Identity  domain.ProviderIdentity `yaml:"identity"`
	Count     int                     `yaml:"count"`
	CreatedAt time.Time               `yaml:"created_at"`

	// DataFile and Checksum are set by backends that keep vectors on disk
	DataFile string `yaml:"data_file,omitempty"`
	Checksum string `yaml:"checksum,omitempty"`

	// Collection is set by backends that keep vectors in an external store.
	// Previous names the generation it replaced, kept for in-flight readers.
	Collection string `yaml:"collection,omitempty"`
	Previous   string `yaml:"previous,omitempty"`
}

// File is one data file written alongside the manifest.
type File struct {
	Name string
	Data []byte
}

// Checksum returns the hex blake2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ManifestChecksum returns the Checksum of the raw manifest at dir. It
// changes whenever a new bundle is written there. Errors come straight
// from the filesystem so callers can test for fs.ErrNotExist.
func ManifestChecksum(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return "", err
	}
	return Checksum(raw), nil
}

// ReadManifest loads the manifest of the bundle at dir.
// A missing bundle is domain.ErrNotFound; an unparsable or unsupported
// manifest is domain.ErrCorruptIndex.
func ReadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("index bundle %s: %w", dir, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: read manifest: %v", domain.ErrStorage, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", domain.ErrCorruptIndex, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported bundle version %d", domain.ErrCorruptIndex, m.Version)
	}
	return &m, nil
}

// ReadData reads a data file of the bundle and verifies it against the
// manifest checksum.
func ReadData(dir string, m *Manifest) ([]byte, error) {
	if m.DataFile == "" {
		return nil, fmt.Errorf("%w: manifest names no data file", domain.ErrCorruptIndex)
	}
	data, err := os.ReadFile(filepath.Join(dir, m.DataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: data file %s missing", domain.ErrCorruptIndex, m.DataFile)
		}
		return nil, fmt.Errorf("%w: read data file: %v", domain.ErrStorage, err)
	}
	if Checksum(data) != m.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", domain.ErrCorruptIndex, m.DataFile)
	}
	return data, nil
}

// Write persists m and files as the bundle at dir. Everything is written
// to a sibling temporary directory first and swapped in with renames, so a
// failure leaves any previous bundle at dir untouched. Only an existing
// bundle or an empty directory may be replaced.
func Write(dir string, m *Manifest, files ...File) error {
	dir = filepath.Clean(dir)
	exists, err := replaceable(dir)
	if err != nil {
		return err
	}
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrStorage, parent, err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("%w: create staging dir: %v", domain.ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	for _, f := range files {
		if err := writeSynced(filepath.Join(tmp, f.Name), f.Data); err != nil {
			return err
		}
	}

	manifest, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encode manifest: %v", domain.ErrStorage, err)
	}
	if err := writeSynced(filepath.Join(tmp, ManifestFile), manifest); err != nil {
		return err
	}

	// Move the previous bundle aside, then swap the staged one in.
	var old string
	if exists {
		old = tmp + ".old"
		if err := os.Rename(dir, old); err != nil {
			return fmt.Errorf("%w: move previous bundle: %v", domain.ErrStorage, err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if old != "" {
			_ = os.Rename(old, dir)
		}
		return fmt.Errorf("%w: install bundle: %v", domain.ErrStorage, err)
	}
	committed = true

	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

// replaceable reports whether dir exists, failing when it holds something
// other than an index bundle or nothing at all.
func replaceable(dir string) (bool, error) {
	info, err := os.Lstat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", domain.ErrStorage, dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s exists and is not an index bundle", domain.ErrStorage, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %v", domain.ErrStorage, dir, err)
	}
	if len(entries) == 0 {
		return true, nil
	}
	if manifest, err := os.Lstat(filepath.Join(dir, ManifestFile)); err == nil && manifest.Mode().IsRegular() {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s exists and is not an index bundle", domain.ErrStorage, dir)
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrStorage, filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync %s: %v", domain.ErrStorage, filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", domain.ErrStorage, filepath.Base(path), err)
	}
	return nil
}
