package i18n

import (
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Store persists the selected locale between runs.
type Store interface {
	// Load returns "" when nothing was saved yet.
	Load() (string, error)
	Save(locale string) error
}

type fileState struct {
	Locale string `json:"locale"`
}

// FileStore keeps the locale in a small JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "read locale file")
	}

	var st fileState
	if err := jsoniter.Unmarshal(raw, &st); err != nil {
		return "", errors.Wrap(err, "decode locale file")
	}
	return st.Locale, nil
}

func (s *FileStore) Save(locale string) error {
	raw, err := jsoniter.Marshal(fileState{Locale: locale})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create locale dir")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrap(err, "write locale file")
	}
	return os.Rename(tmp, s.path)
}

type MemoryStore struct {
	mu     sync.Mutex
	locale string
}

func (s *MemoryStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale, nil
}

func (s *MemoryStore) Save(locale string) error {
	s.mu.Lock()
	s.locale = locale
	s.mu.Unlock()
	return nil
}
