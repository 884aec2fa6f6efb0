package io

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/ecopia-map/octree_indexer/internal/data"
	"github.com/edaniels/lidario"
	"github.com/pkg/errors"
)

const LasFormatName = "las"

// point format written when no LAS template is available: xyz, intensity, classification, rgb
const defaultLasPointFormat = 2

// coordinate quantization of files created without a LAS template
const defaultLasScale = 0.001

const lasBufferSize = 1 << 16

// LAS point streams. Headers and VLRs are parsed by lidario, point records are streamed one at a
// time so a node never holds more than its retained points in memory.
type LasFormat struct{}

func NewLasFormat() *LasFormat {
	return &LasFormat{}
}

func (f *LasFormat) Name() string {
	return LasFormatName
}

func (f *LasFormat) Extension() string {
	return ".las"
}

func (f *LasFormat) Open(path string) (PointReader, error) {
	// "rh" reads the header and the VLRs, not the points
	lf, err := lidario.NewLasFile(path, "rh")
	if lf != nil {
		_ = lf.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open las file %s", path)
	}
	header := lf.Header
	standardLength, err := lasRecordLength(header.PointFormatID)
	if err != nil {
		return nil, errors.Wrapf(err, "las file %s", path)
	}
	if header.PointRecordLength < standardLength {
		return nil, errors.Errorf("las file %s: record length %d is shorter than the %d bytes of point format %d",
			path, header.PointRecordLength, standardLength, header.PointFormatID)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open las file %s", path)
	}
	if _, err := file.Seek(int64(header.OffsetToPoints), io.SeekStart); err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "cannot seek to the points of %s", path)
	}
	return &lasReader{
		path:   path,
		header: header,
		vlrs:   lf.VlrData,
		file:   file,
		reader: bufio.NewReaderSize(file, lasBufferSize),
	}, nil
}

// Creates a new LAS file. If template is a LAS reader the new file copies its header layout and
// VLRs, so the source records are written back byte for byte.
func (f *LasFormat) Create(path string, template PointReader) (PointWriter, error) {
	var header lidario.LasHeader
	var vlrs []lidario.VLR
	fromTemplate := false
	if tmpl, ok := template.(*lasReader); ok {
		header, vlrs = tmpl.header, tmpl.vlrs
		fromTemplate = true
	} else {
		header = lidario.LasHeader{
			PointFormatID: defaultLasPointFormat,
			XScaleFactor:  defaultLasScale,
			YScaleFactor:  defaultLasScale,
			ZScaleFactor:  defaultLasScale,
		}
		header.PointRecordLength = lasRecordLengths[defaultLasPointFormat]
	}
	header.NumberPoints = 0
	header.NumberPointsByReturn = [5]int{}

	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create las file %s", path)
	}
	w := &lasWriter{
		path:         path,
		file:         file,
		writer:       bufio.NewWriterSize(file, lasBufferSize),
		header:       header,
		vlrs:         vlrs,
		fromTemplate: fromTemplate,
		record:       make([]byte, header.PointRecordLength),
		min:          [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		max:          [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	// the header is rewritten with the final counts and extent on Close
	if err := w.writeHeader(w.writer); err != nil {
		_ = file.Close()
		return nil, err
	}
	for _, vlr := range vlrs {
		if err := binary.Write(w.writer, binary.LittleEndian, newLasVLRHeader(vlr)); err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "cannot write las vlr of %s", path)
		}
		if _, err := w.writer.Write(vlr.BinaryData); err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "cannot write las vlr of %s", path)
		}
	}
	return w, nil
}

type lasReader struct {
	path   string
	header lidario.LasHeader
	vlrs   []lidario.VLR
	file   *os.File
	reader *bufio.Reader
	next   int
}

func (r *lasReader) Header() (Header, error) {
	h := r.header
	if h.NumberPoints == 0 {
		return Header{}, nil
	}
	return Header{
		NumberPoints: int64(h.NumberPoints),
		MinX:         h.MinX,
		MaxX:         h.MaxX,
		MinY:         h.MinY,
		MaxY:         h.MaxY,
		MinZ:         h.MinZ,
		MaxZ:         h.MaxZ,
	}, nil
}

func (r *lasReader) Next() (*data.Point, error) {
	if r.next >= r.header.NumberPoints {
		return nil, io.EOF
	}
	raw := make([]byte, r.header.PointRecordLength)
	if _, err := io.ReadFull(r.reader, raw); err != nil {
		return nil, errors.Wrapf(err, "cannot read las point %d of %s", r.next, r.path)
	}
	r.next++

	record := decodeLasRecord(&r.header, raw)
	pd := record.PointData()
	point := data.NewPoint(
		pd.X, pd.Y, pd.Z,
		0, 0, 0,
		pd.Intensity,
		pd.ClassBitField.Classification(),
		&data.PointExtend{Record: &lasRecord{LasPointer: record, raw: raw}, Format: LasFormatName},
	)
	if r.header.PointFormatID == 2 || r.header.PointFormatID == 3 {
		rgb := record.RgbData()
		point.R, point.G, point.B = rgb.Red, rgb.Green, rgb.Blue
	}
	return point, nil
}

func (r *lasReader) Close() error {
	return r.file.Close()
}

type lasWriter struct {
	path         string
	file         *os.File
	writer       *bufio.Writer
	header       lidario.LasHeader
	vlrs         []lidario.VLR
	fromTemplate bool
	record       []byte
	count        int64
	min, max     [3]float64
}

func (w *lasWriter) Write(point *data.Point) error {
	pointer, raw := w.toLasPoint(point)
	if raw == nil {
		encodeLasRecord(&w.header, pointer, w.record)
		raw = w.record
	}
	if _, err := w.writer.Write(raw); err != nil {
		return errors.Wrapf(err, "cannot write las point to %s", w.path)
	}

	pd := pointer.PointData()
	w.header.NumberPointsByReturn[returnIndex(pd)]++
	for i, v := range [3]float64{pd.X, pd.Y, pd.Z} {
		w.min[i] = math.Min(w.min[i], v)
		w.max[i] = math.Max(w.max[i], v)
	}
	w.count++
	return nil
}

// Returns the record of the point, with its raw bytes if they can be copied as they are, that is
// when the point comes from a file of the same layout as this one
func (w *lasWriter) toLasPoint(point *data.Point) (lidario.LasPointer, []byte) {
	if ext := point.PointExtend; ext != nil && ext.Format == LasFormatName {
		if record, ok := ext.Record.(*lasRecord); ok {
			if w.fromTemplate && record.Format() == w.header.PointFormatID && len(record.raw) == len(w.record) {
				return record, record.raw
			}
			return record.LasPointer, nil
		}
	}

	pr0 := &lidario.PointRecord0{
		X:         point.X,
		Y:         point.Y,
		Z:         point.Z,
		Intensity: point.Intensity,
		BitField: lidario.PointBitField{
			Value: (1) | (1 << 3),
		},
		ClassBitField: lidario.ClassificationBitField{
			Value: point.Classification & 0x1f,
		},
		PointSourceID: 1,
	}
	rgb := &lidario.RgbData{Red: point.R, Green: point.G, Blue: point.B}

	switch w.header.PointFormatID {
	case 1:
		return &lidario.PointRecord1{PointRecord0: pr0}, nil
	case 2:
		return &lidario.PointRecord2{PointRecord0: pr0, RGB: rgb}, nil
	case 3:
		return &lidario.PointRecord3{PointRecord0: pr0, RGB: rgb}, nil
	default:
		return pr0, nil
	}
}

// index in NumberPointsByReturn, returns past the fifth are counted as fifth
func returnIndex(pd *lidario.PointRecord0) int {
	n := int(pd.BitField.ReturnNumber())
	if n > 5 {
		n = 5
	}
	return n - 1
}

func (w *lasWriter) writeHeader(out io.Writer) error {
	block := newLasHeaderBlock(&w.header, w.vlrs)
	if err := binary.Write(out, binary.LittleEndian, &block); err != nil {
		return errors.Wrapf(err, "cannot write las header of %s", w.path)
	}
	return nil
}

func (w *lasWriter) Count() int64 {
	return w.count
}

// Flushes the records and rewrites the header with the number of points and their extent. A file
// with no point gets a zero extent.
func (w *lasWriter) Close() error {
	flushErr := w.writer.Flush()

	w.header.NumberPoints = int(w.count)
	if w.count > 0 {
		w.header.MinX, w.header.MinY, w.header.MinZ = w.min[0], w.min[1], w.min[2]
		w.header.MaxX, w.header.MaxY, w.header.MaxZ = w.max[0], w.max[1], w.max[2]
	} else {
		w.header.MinX, w.header.MinY, w.header.MinZ = 0, 0, 0
		w.header.MaxX, w.header.MaxY, w.header.MaxZ = 0, 0, 0
	}
	var headerErr error
	if flushErr == nil {
		if _, err := w.file.Seek(0, io.SeekStart); err != nil {
			headerErr = errors.Wrapf(err, "cannot rewind %s", w.path)
		} else {
			headerErr = w.writeHeader(w.file)
		}
	}
	closeErr := w.file.Close()

	if flushErr != nil {
		return errors.Wrapf(flushErr, "cannot flush las file %s", w.path)
	}
	if headerErr != nil {
		return headerErr
	}
	return closeErr
}
