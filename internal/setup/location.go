package setup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aleksaelezovic/trigo-tdb/pkg/params"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// dataDir holds the storage engine files of an on-disk location
const dataDir = "data"

// Location is where a store lives: a directory, or memory.
type Location struct {
	dir string
}

// Dir is the on-disk location rooted at path
func Dir(path string) Location {
	return Location{dir: filepath.Clean(path)}
}

// Mem is an in-memory location; nothing outlives Close.
func Mem() Location {
	return Location{}
}

func (l Location) IsMem() bool {
	return l.dir == ""
}

// Path returns the location's directory, "" in memory
func (l Location) Path() string {
	return l.dir
}

func (l Location) ParamsFile() string {
	return filepath.Join(l.dir, params.FileName)
}

func (l Location) DataDir() string {
	return filepath.Join(l.dir, dataDir)
}

func (l Location) String() string {
	if l.IsMem() {
		return "mem:"
	}
	return l.dir
}

// state describes what an on-disk location already holds
type state struct {
	hasParams bool
	hasData   bool
}

func (l Location) inspect() (state, error) {
	var st state
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return st, fmt.Errorf("%w: location %s: %w", store.ErrConfig, l.dir, err)
	}
	if _, err := os.Stat(l.ParamsFile()); err == nil {
		st.hasParams = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return st, fmt.Errorf("%w: location %s: %w", store.ErrConfig, l.dir, err)
	}
	entries, err := os.ReadDir(l.DataDir())
	switch {
	case err == nil:
		st.hasData = len(entries) > 0
	case !errors.Is(err, fs.ErrNotExist):
		return st, fmt.Errorf("%w: location %s: %w", store.ErrConfig, l.dir, err)
	}
	return st, nil
}
