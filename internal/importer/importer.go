// Package importer reads vendor recording files into session channels.
package importer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/store"
)

// ErrUnsupportedFormat is returned when no importer handles a file.
var ErrUnsupportedFormat = errors.New("importer: unsupported file format")

// Importer converts one vendor file format into channels.
type Importer interface {
	// Format is the short name of the handled format.
	Format() string

	// Extensions lists the file extensions this importer accepts,
	// lowercase with leading dot.
	Extensions() []string

	// Import reads the file at path and returns the channels it
	// contains, typed against reg.
	Import(path string, reg *channel.Registry) ([]*channel.Channel, error)
}

// All returns the built-in importers.
func All() []Importer {
	return []Importer{EDFImporter{}}
}

// ForPath picks the importer handling path's extension.
func ForPath(path string, importers []Importer) (Importer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, imp := range importers {
		for _, e := range imp.Extensions() {
			if e == ext {
				return imp, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// ImportInto imports the file at path and appends its channels to the
// session behind b. It returns the visible ids of the new channels.
func ImportInto(b store.Backend, path string, reg *channel.Registry, importers []Importer) ([]int, error) {
	imp, err := ForPath(path, importers)
	if err != nil {
		return nil, err
	}
	chans, err := imp.Import(path, reg)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	if len(chans) == 0 {
		return nil, fmt.Errorf("import %s: no channels found", path)
	}

	var ids []int
	msg := fmt.Sprintf("imported %d channels from %s", len(chans), filepath.Base(path))
	err = store.Update(b, func(sess *store.Session) error {
		var err error
		ids, err = sess.Add(msg, chans...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
