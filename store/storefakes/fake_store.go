package storefakes

import (
	"sync"

	"github.com/teamsales/crm-client/store"
)

var _ store.Repo = (*FakeRepo)(nil)

// FakeRepo is an in-memory key-value store for tests.
type FakeRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewFakeRepo() *FakeRepo {
	return &FakeRepo{values: make(map[string]string)}
}

func (fr *FakeRepo) Get(key string) (string, error) {
	fr.lock.RLock()
	defer fr.lock.RUnlock()
	return fr.values[key], nil
}

func (fr *FakeRepo) Set(key, value string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	fr.values[key] = value
	return nil
}

func (fr *FakeRepo) Delete(key string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	delete(fr.values, key)
	return nil
}

// Len reports how many keys are stored, for emptiness assertions.
func (fr *FakeRepo) Len() int {
	fr.lock.RLock()
	defer fr.lock.RUnlock()
	return len(fr.values)
}

var _ store.TokenMirror = (*FakeTokenMirror)(nil)

// FakeTokenMirror is an in-memory token mirror for tests.
type FakeTokenMirror struct {
	token string
	lock  sync.RWMutex
}

func NewFakeTokenMirror() *FakeTokenMirror {
	return &FakeTokenMirror{}
}

func (fm *FakeTokenMirror) WriteToken(token string) error {
	fm.lock.Lock()
	defer fm.lock.Unlock()
	fm.token = token
	return nil
}

func (fm *FakeTokenMirror) ReadToken() (string, error) {
	fm.lock.RLock()
	defer fm.lock.RUnlock()
	return fm.token, nil
}

func (fm *FakeTokenMirror) Clear() error {
	fm.lock.Lock()
	defer fm.lock.Unlock()
	fm.token = ""
	return nil
}
