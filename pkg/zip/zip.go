// Package zip bundles downloaded export artifacts into one archive.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Asset is one file of the archive.
type Asset struct {
	Filename string
	Data     []byte
}

// WriteArchive writes assets to w. Duplicate or unsafe names are rejected so
// one variant never overwrites another inside the archive.
func WriteArchive(w io.Writer, assets []Asset, modified time.Time) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		name := path.Clean(strings.TrimSpace(asset.Filename))
		if name == "." || name == "" || strings.HasPrefix(name, "../") || path.IsAbs(name) {
			_ = zw.Close()
			return fmt.Errorf("zip: unsafe filename %q", asset.Filename)
		}
		if _, dup := seen[name]; dup {
			_ = zw.Close()
			return fmt.Errorf("zip: duplicate filename %q", name)
		}
		seen[name] = struct{}{}

		f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := f.Write(asset.Data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	return zw.Close()
}
