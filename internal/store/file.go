package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileKV is a KV persisted as a flat TOML table. Every Set or Delete rewrites
// the whole file through a temporary file and a rename, so a crash never
// leaves a half-written state file behind.
type FileKV struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// Ensure FileKV implements KV.
var _ KV = (*FileKV)(nil)

// OpenFileKV loads the state file at path. A missing file yields an empty store.
func OpenFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, data: make(map[string]string)}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, fmt.Errorf("checking state file: %w", err)
	}
	if _, err := toml.DecodeFile(path, &kv.data); err != nil {
		return nil, fmt.Errorf("decoding state file %s: %w", path, err)
	}
	return kv, nil
}

// Path returns the file backing the store.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	f.data[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	if !had {
		return nil
	}
	delete(f.data, key)
	if err := f.flush(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

// flush must be called with f.mu held.
func (f *FileKV) flush() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting state file permissions: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(f.data); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
