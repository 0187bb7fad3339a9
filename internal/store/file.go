package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FileStore keeps settings in a small YAML document on disk.
type FileStore struct {
	path string
}

type fileSettings struct {
	ModelName string `yaml:"model_name,omitempty"`
}

// NewFile returns a FileStore at path. The file is created on first write.
func NewFile(path string) *FileStore {
	return &FileStore{path: path}
}

// Migrate ensures the parent directory exists.
func (s *FileStore) Migrate(context.Context) error {
	if s.path == "" {
		return fail("file: migrate", eris.New("path is required"))
	}
	dir := filepath.Dir(s.path)
	return fail("file: migrate", os.MkdirAll(dir, 0o755))
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (fileSettings, error) {
	var out fileSettings
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, eris.Wrapf(err, "decode %s", s.path)
	}
	return out, nil
}

func (s *FileStore) GetModelOverride(context.Context) (string, bool, error) {
	settings, err := s.read()
	if err != nil {
		return "", false, fail("file: get model override", err)
	}
	name := strings.TrimSpace(settings.ModelName)
	return name, name != "", nil
}

// SetModelOverride rewrites the file through a temporary file and rename, so
// readers never see a partial document.
func (s *FileStore) SetModelOverride(_ context.Context, name string) error {
	settings, err := s.read()
	if err != nil {
		return fail("file: set model override", err)
	}
	settings.ModelName = strings.TrimSpace(name)

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fail("file: set model override", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return fail("file: set model override", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return fail("file: set model override", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("file: set model override", err)
	}
	return fail("file: set model override", os.Rename(tmp.Name(), s.path))
}
