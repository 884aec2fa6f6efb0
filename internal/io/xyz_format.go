package io

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ecopia-map/octree_indexer/internal/data"
	"github.com/pkg/errors"
)

const XyzFormatName = "xyz"

// Plain text point streams, one point per line:
//
//	x y z [r g b [intensity [classification]]]
//
// Blank lines and lines starting with '#' are ignored.
type XyzFormat struct{}

func NewXyzFormat() *XyzFormat {
	return &XyzFormat{}
}

func (f *XyzFormat) Name() string {
	return XyzFormatName
}

func (f *XyzFormat) Extension() string {
	return ".xyz"
}

func (f *XyzFormat) Open(path string) (PointReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open xyz file %s", path)
	}
	return &xyzReader{path: path, file: file, scanner: bufio.NewScanner(file)}, nil
}

func (f *XyzFormat) Create(path string, _ PointReader) (PointWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create xyz file %s", path)
	}
	return &xyzWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

type xyzReader struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	line    int
}

// The format has no header: extent and count come from a separate scan of the whole file
func (r *xyzReader) Header() (Header, error) {
	file, err := os.Open(r.path)
	if err != nil {
		return Header{}, errors.Wrapf(err, "cannot open xyz file %s", r.path)
	}
	defer file.Close()

	header := Header{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
		MinZ: math.Inf(1), MaxZ: math.Inf(-1),
	}
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		point, err := parseXyzLine(scanner.Text())
		if err != nil {
			return Header{}, errors.Wrapf(err, "%s:%d", r.path, line)
		}
		if point == nil {
			continue
		}
		header.NumberPoints++
		header.MinX, header.MaxX = math.Min(header.MinX, point.X), math.Max(header.MaxX, point.X)
		header.MinY, header.MaxY = math.Min(header.MinY, point.Y), math.Max(header.MaxY, point.Y)
		header.MinZ, header.MaxZ = math.Min(header.MinZ, point.Z), math.Max(header.MaxZ, point.Z)
	}
	if err := scanner.Err(); err != nil {
		return Header{}, errors.Wrapf(err, "cannot scan xyz file %s", r.path)
	}
	if header.NumberPoints == 0 {
		return Header{}, nil
	}
	return header, nil
}

func (r *xyzReader) Next() (*data.Point, error) {
	for r.scanner.Scan() {
		r.line++
		point, err := parseXyzLine(r.scanner.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", r.path, r.line)
		}
		if point != nil {
			return point, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "cannot read xyz file %s", r.path)
	}
	return nil, io.EOF
}

func (r *xyzReader) Close() error {
	return r.file.Close()
}

// returns a nil point for blank and comment lines
func parseXyzLine(line string) (*data.Point, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, errors.Errorf("expected at least 3 columns, got %d", len(fields))
	}

	var xyz [3]float64
	for i := range xyz {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid coordinate %q", fields[i])
		}
		xyz[i] = v
	}

	// r, g, b, intensity, classification
	var attrs [5]uint64
	for i := 3; i < len(fields) && i < 8; i++ {
		bits := 16
		if i == 7 {
			bits = 8
		}
		v, err := strconv.ParseUint(fields[i], 10, bits)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid attribute %q", fields[i])
		}
		attrs[i-3] = v
	}

	return data.NewPoint(
		xyz[0], xyz[1], xyz[2],
		uint16(attrs[0]), uint16(attrs[1]), uint16(attrs[2]),
		uint16(attrs[3]),
		uint8(attrs[4]),
		nil,
	), nil
}

type xyzWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int64
}

func (w *xyzWriter) Write(point *data.Point) error {
	_, err := fmt.Fprintf(w.writer, "%s %s %s %d %d %d %d %d\n",
		strconv.FormatFloat(point.X, 'g', -1, 64),
		strconv.FormatFloat(point.Y, 'g', -1, 64),
		strconv.FormatFloat(point.Z, 'g', -1, 64),
		point.R, point.G, point.B, point.Intensity, point.Classification,
	)
	if err != nil {
		return errors.Wrap(err, "cannot write xyz point")
	}
	w.count++
	return nil
}

func (w *xyzWriter) Count() int64 {
	return w.count
}

func (w *xyzWriter) Close() error {
	flushErr := w.writer.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return errors.Wrap(flushErr, "cannot flush xyz file")
	}
	return closeErr
}
