package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const storeFileName = "client-store.json"

// FileRepo is the file-backed implementation of Repo. All keys live in a
// single JSON document under the configured data folder, rewritten atomically
// on every mutation.
type FileRepo struct {
	path string
	lock sync.Mutex
}

var _ Repo = (*FileRepo)(nil)

// NewFileRepo creates the data folder if needed and returns a repo persisting
// to <dataFolder>/client-store.json.
func NewFileRepo(dataFolder string) (*FileRepo, error) {
	if err := os.MkdirAll(dataFolder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileRepo] creating data folder")
	}
	return &FileRepo{path: filepath.Join(dataFolder, storeFileName)}, nil
}

func (fr *FileRepo) Get(key string) (string, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	values, err := fr.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (fr *FileRepo) Set(key, value string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	values, err := fr.load()
	if err != nil {
		// A corrupt store must not block a fresh write.
		values = map[string]string{}
	}
	values[key] = value
	return fr.save(values)
}

func (fr *FileRepo) Delete(key string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()

	values, err := fr.load()
	if err != nil {
		values = map[string]string{}
	}
	delete(values, key)
	return fr.save(values)
}

func (fr *FileRepo) load() (map[string]string, error) {
	data, err := os.ReadFile(fr.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileRepo.load] reading store file")
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "[FileRepo.load] decoding store file")
	}
	return values, nil
}

// save writes to a temp file and renames it into place, so a crash mid-write
// never leaves a half-written store behind.
func (fr *FileRepo) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "[FileRepo.save] encoding store")
	}
	tmp := fr.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[FileRepo.save] writing store file")
	}
	if err := os.Rename(tmp, fr.path); err != nil {
		return errors.Wrap(err, "[FileRepo.save] replacing store file")
	}
	return nil
}
