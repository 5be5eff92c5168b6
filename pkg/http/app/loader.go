package app

import (
	"fmt"
	"net/url"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// FileLoader reads the file identified by u
type FileLoader func(u *url.URL) ([]byte, error)

var (
	loadersMu sync.RWMutex
	loaders   = map[string]FileLoader{
		"":     loadLocalFile,
		"file": loadLocalFile,
	}
)

// RegisterFileLoader makes files with the given URL scheme loadable through
// LoadFile. Registering a scheme twice panics.
func RegisterFileLoader(scheme string, loader FileLoader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()

	if _, exists := loaders[scheme]; exists {
		panic(fmt.Sprintf("file loader already registered for scheme %q", scheme))
	}
	loaders[scheme] = loader
}

// LoadFile reads the file at fileUrl with the loader registered for its
// scheme. Plain paths resolve to the local filesystem.
func LoadFile(fileUrl string) ([]byte, error) {
	u, err := url.Parse(fileUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid file url %s", fileUrl)
	}

	loadersMu.RLock()
	loader, ok := loaders[u.Scheme]
	loadersMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("no file loader for scheme %q", u.Scheme)
	}

	contents, err := loader(u)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading %s", fileUrl)
	}
	return contents, nil
}

func loadLocalFile(u *url.URL) ([]byte, error) {
	return os.ReadFile(u.Path)
}
