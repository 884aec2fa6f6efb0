package io

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/edaniels/lidario"
	"github.com/pkg/errors"
)

// LAS 1.2 public header block, as laid out on disk
type lasHeaderBlock struct {
	FileSignature        [4]byte
	FileSourceID         uint16
	GlobalEncoding       uint16
	ProjectID1           uint32
	ProjectID2           uint16
	ProjectID3           uint16
	ProjectID4           [8]byte
	VersionMajor         uint8
	VersionMinor         uint8
	SystemID             [32]byte
	GeneratingSoftware   [32]byte
	FileCreationDay      uint16
	FileCreationYear     uint16
	HeaderSize           uint16
	OffsetToPoints       uint32
	NumberOfVLRs         uint32
	PointFormatID        uint8
	PointRecordLength    uint16
	NumberPoints         uint32
	NumberPointsByReturn [5]uint32
	XScaleFactor         float64
	YScaleFactor         float64
	ZScaleFactor         float64
	XOffset              float64
	YOffset              float64
	ZOffset              float64
	MaxX                 float64
	MinX                 float64
	MaxY                 float64
	MinY                 float64
	MaxZ                 float64
	MinZ                 float64
}

type lasVLRHeader struct {
	Reserved                uint16
	UserID                  [16]byte
	RecordID                uint16
	RecordLengthAfterHeader uint16
	Description             [32]byte
}

const (
	lasHeaderSize    = 227
	lasVLRHeaderSize = 54
	lasSoftwareName  = "octree_indexer"
)

// lengths of the standard records of point formats 0 to 3
var lasRecordLengths = [...]int{20, 28, 26, 34}

func lasRecordLength(pointFormat byte) (int, error) {
	if int(pointFormat) >= len(lasRecordLengths) {
		return 0, errors.Errorf("unsupported las point format %d", pointFormat)
	}
	return lasRecordLengths[pointFormat], nil
}

func lasOffsetToPoints(vlrs []lidario.VLR) int {
	offset := lasHeaderSize
	for _, vlr := range vlrs {
		offset += lasVLRHeaderSize + len(vlr.BinaryData)
	}
	return offset
}

func newLasHeaderBlock(h *lidario.LasHeader, vlrs []lidario.VLR) lasHeaderBlock {
	now := time.Now()
	block := lasHeaderBlock{
		FileSourceID:         uint16(h.FileSourceID),
		GlobalEncoding:       h.GlobalEncoding.Value,
		ProjectID1:           uint32(h.ProjectID1),
		ProjectID2:           uint16(h.ProjectID2),
		ProjectID3:           uint16(h.ProjectID3),
		ProjectID4:           h.ProjectID4,
		VersionMajor:         1,
		VersionMinor:         2,
		FileCreationDay:      uint16(now.YearDay()),
		FileCreationYear:     uint16(now.Year()),
		HeaderSize:           lasHeaderSize,
		OffsetToPoints:       uint32(lasOffsetToPoints(vlrs)),
		NumberOfVLRs:         uint32(len(vlrs)),
		PointFormatID:        h.PointFormatID,
		PointRecordLength:    uint16(h.PointRecordLength),
		NumberPoints:         uint32(h.NumberPoints),
		XScaleFactor:         h.XScaleFactor,
		YScaleFactor:         h.YScaleFactor,
		ZScaleFactor:         h.ZScaleFactor,
		XOffset:              h.XOffset,
		YOffset:              h.YOffset,
		ZOffset:              h.ZOffset,
		MaxX:                 h.MaxX,
		MinX:                 h.MinX,
		MaxY:                 h.MaxY,
		MinY:                 h.MinY,
		MaxZ:                 h.MaxZ,
		MinZ:                 h.MinZ,
	}
	copy(block.FileSignature[:], "LASF")
	copy(block.SystemID[:], h.SystemID)
	copy(block.GeneratingSoftware[:], lasSoftwareName)
	for i, n := range h.NumberPointsByReturn {
		block.NumberPointsByReturn[i] = uint32(n)
	}
	return block
}

func newLasVLRHeader(vlr lidario.VLR) lasVLRHeader {
	header := lasVLRHeader{
		Reserved:                uint16(vlr.Reserved),
		RecordID:                uint16(vlr.RecordID),
		RecordLengthAfterHeader: uint16(len(vlr.BinaryData)),
	}
	copy(header.UserID[:], vlr.UserID)
	copy(header.Description[:], vlr.Description)
	return header
}

// Source record of a LAS point: the decoded fields and the raw bytes, written back unchanged to
// files sharing the layout of the source
type lasRecord struct {
	lidario.LasPointer
	raw []byte
}

func decodeLasRecord(h *lidario.LasHeader, b []byte) lidario.LasPointer {
	le := binary.LittleEndian
	p := &lidario.PointRecord0{
		X:             float64(int32(le.Uint32(b[0:4])))*h.XScaleFactor + h.XOffset,
		Y:             float64(int32(le.Uint32(b[4:8])))*h.YScaleFactor + h.YOffset,
		Z:             float64(int32(le.Uint32(b[8:12])))*h.ZScaleFactor + h.ZOffset,
		Intensity:     le.Uint16(b[12:14]),
		BitField:      lidario.PointBitField{Value: b[14]},
		ClassBitField: lidario.ClassificationBitField{Value: b[15]},
		ScanAngle:     int8(b[16]),
		UserData:      b[17],
		PointSourceID: le.Uint16(b[18:20]),
	}
	switch h.PointFormatID {
	case 1:
		return &lidario.PointRecord1{PointRecord0: p, GPSTime: math.Float64frombits(le.Uint64(b[20:28]))}
	case 2:
		return &lidario.PointRecord2{PointRecord0: p, RGB: decodeLasRgb(b[20:26])}
	case 3:
		return &lidario.PointRecord3{
			PointRecord0: p,
			GPSTime:      math.Float64frombits(le.Uint64(b[20:28])),
			RGB:          decodeLasRgb(b[28:34]),
		}
	}
	return p
}

func decodeLasRgb(b []byte) *lidario.RgbData {
	le := binary.LittleEndian
	return &lidario.RgbData{Red: le.Uint16(b[0:2]), Green: le.Uint16(b[2:4]), Blue: le.Uint16(b[4:6])}
}

// Encodes the record in the layout of h. b must be h.PointRecordLength long; bytes past the
// standard record are zeroed.
func encodeLasRecord(h *lidario.LasHeader, p lidario.LasPointer, b []byte) {
	le := binary.LittleEndian
	pd := p.PointData()
	le.PutUint32(b[0:4], uint32(quantize(pd.X, h.XOffset, h.XScaleFactor)))
	le.PutUint32(b[4:8], uint32(quantize(pd.Y, h.YOffset, h.YScaleFactor)))
	le.PutUint32(b[8:12], uint32(quantize(pd.Z, h.ZOffset, h.ZScaleFactor)))
	le.PutUint16(b[12:14], pd.Intensity)
	b[14] = pd.BitField.Value
	b[15] = pd.ClassBitField.Value
	b[16] = uint8(pd.ScanAngle)
	b[17] = pd.UserData
	le.PutUint16(b[18:20], pd.PointSourceID)
	for i := 20; i < len(b); i++ {
		b[i] = 0
	}

	switch h.PointFormatID {
	case 1:
		le.PutUint64(b[20:28], math.Float64bits(lasGpsTime(p)))
	case 2:
		encodeLasRgb(p.RgbData(), b[20:26])
	case 3:
		le.PutUint64(b[20:28], math.Float64bits(lasGpsTime(p)))
		encodeLasRgb(p.RgbData(), b[28:34])
	}
}

func encodeLasRgb(rgb *lidario.RgbData, b []byte) {
	if rgb == nil {
		return
	}
	le := binary.LittleEndian
	le.PutUint16(b[0:2], rgb.Red)
	le.PutUint16(b[2:4], rgb.Green)
	le.PutUint16(b[4:6], rgb.Blue)
}

// records without a time report NoData, stored as 0
func lasGpsTime(p lidario.LasPointer) float64 {
	t := p.GpsTimeData()
	if math.IsInf(t, 0) || math.IsNaN(t) {
		return 0
	}
	return t
}

func quantize(v, offset, scale float64) int32 {
	return int32(math.Round((v - offset) / scale))
}
