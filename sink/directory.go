// Package sink persists extracted images.
package sink

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ivanvanderbyl/pdfimages"
)

// Directory writes output images as PNG files into a directory and records
// them in an optional manifest.
type Directory struct {
	root     string
	manifest *Manifest
}

// NewDirectory creates the output directory if needed.
func NewDirectory(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", root)
	}
	return &Directory{root: root}, nil
}

// WithManifest records every written image in m.
func (d *Directory) WithManifest(m *Manifest) *Directory {
	d.manifest = m
	return d
}

// FileName returns the file name used for an output image.
func FileName(img pdfimages.OutputImage) string {
	return fmt.Sprintf("page%04d_%03d_%s.png", img.Page, img.Index, img.Kind)
}

// Write encodes one output image and returns the written path.
func (d *Directory) Write(img pdfimages.OutputImage) (string, error) {
	if img.Image == nil {
		return "", errors.Errorf("output %s has no pixels", img.ID)
	}

	name := FileName(img)
	path := filepath.Join(d.root, name)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", path)
	}
	if err := png.Encode(f, img.Image); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "failed to encode %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to close %s", path)
	}

	if d.manifest != nil {
		if err := d.manifest.Record(img, name); err != nil {
			return "", err
		}
	}

	return path, nil
}

// WriteAll writes every output image in order and returns the written paths.
func (d *Directory) WriteAll(images []pdfimages.OutputImage) ([]string, error) {
	paths := make([]string, 0, len(images))
	for _, img := range images {
		path, err := d.Write(img)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
