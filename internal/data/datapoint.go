package data

import "github.com/golang/geo/r3"

// Contains data of a Point Cloud Point, namely X,Y,Z coords,
// R,G,B color components, Intensity and Classification
type Point struct {
	X              float64
	Y              float64
	Z              float64
	R              uint16
	G              uint16
	B              uint16
	Intensity      uint16
	Classification uint8

	// source record, written back verbatim by formats able to understand it
	PointExtend *PointExtend
}

type PointExtend struct {
	// opaque record of the stream format the point was read from
	Record interface{}
	// name of the format that produced Record
	Format string
}

// Builds a new Point from the given coordinates, colors, intensity and classification values
func NewPoint(X, Y, Z float64, R, G, B, Intensity uint16, Classification uint8, pointExtend *PointExtend) *Point {
	return &Point{
		X:              X,
		Y:              Y,
		Z:              Z,
		R:              R,
		G:              G,
		B:              B,
		Intensity:      Intensity,
		Classification: Classification,
		PointExtend:    pointExtend,
	}
}

func (p *Point) Position() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}
