package io

import (
	"path/filepath"
	"strings"

	"github.com/ecopia-map/octree_indexer/internal/data"
	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/pkg/errors"
)

// Summary of a point stream as exposed by its header
type Header struct {
	NumberPoints int64
	MinX, MaxX   float64
	MinY, MaxY   float64
	MinZ, MaxZ   float64
}

func (h Header) BoundingBox() *geometry.BoundingBox {
	return geometry.NewBoundingBox(h.MinX, h.MaxX, h.MinY, h.MaxY, h.MinZ, h.MaxZ)
}

// Sequential reader of a point stream. Next returns io.EOF once the stream is exhausted.
type PointReader interface {
	Header() (Header, error)
	Next() (*data.Point, error)
	Close() error
}

// Sequential writer of a point stream. Count reports the number of points written so far.
type PointWriter interface {
	Write(point *data.Point) error
	Count() int64
	Close() error
}

// A point stream encoding. Create may be given the reader the written points come from, so the
// output can inherit its header layout.
type Format interface {
	Name() string
	Extension() string
	Open(path string) (PointReader, error)
	Create(path string, template PointReader) (PointWriter, error)
}

const FormatAuto = "auto"

var formats = map[string]Format{}

func RegisterFormat(format Format) {
	formats[format.Name()] = format
}

func init() {
	RegisterFormat(NewLasFormat())
	RegisterFormat(NewXyzFormat())
}

// Returns the format with the given name. The "auto" name picks the format from the extension
// of path.
func ResolveFormat(name string, path string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == FormatAuto {
		ext := strings.ToLower(filepath.Ext(path))
		for _, format := range formats {
			if format.Extension() == ext {
				return format, nil
			}
		}
		if ext == ".txt" {
			return formats[XyzFormatName], nil
		}
		return nil, errors.Errorf("cannot detect point format of %q", path)
	}

	format, ok := formats[name]
	if !ok {
		return nil, errors.Errorf("unknown point format %q", name)
	}
	return format, nil
}
