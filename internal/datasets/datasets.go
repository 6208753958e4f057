// Package datasets exposes static datasets bundled with the binary, addressed by key.
// A key is the file name under data/ without its .json extension.
package datasets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed data/*.json
var bundled embed.FS

// ErrUnknownDatasetKey is returned for keys that do not name a dataset.
var ErrUnknownDatasetKey = errors.New("unknown dataset key")

// Store reads datasets from a flat directory of JSON files.
type Store struct {
	fsys fs.FS
}

// Bundled returns the store of datasets compiled into the binary.
func Bundled() *Store {
	sub, err := fs.Sub(bundled, "data")
	if err != nil {
		panic(err)
	}
	return &Store{fsys: sub}
}

// NewStore returns a store over fsys.
func NewStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// Has reports whether key names a dataset.
func (s *Store) Has(key string) bool {
	if !validKey(key) {
		return false
	}
	_, err := fs.Stat(s.fsys, key+".json")
	return err == nil
}

// Load returns the raw JSON of the dataset named key.
func (s *Store) Load(key string) ([]byte, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownDatasetKey, key)
	}
	b, err := fs.ReadFile(s.fsys, key+".json")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownDatasetKey, key)
	}
	return b, err
}

// Keys lists the available dataset keys in sorted order.
func (s *Store) Keys() []string {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys
}

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\.`)
}
