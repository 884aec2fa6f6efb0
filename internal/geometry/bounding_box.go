package geometry

import "math"

// Axis aligned bounding box, as exposed by point stream headers. Mid values are precomputed
// since they are read for every point routed through a node.
type BoundingBox struct {
	Xmin, Xmax       float64
	Ymin, Ymax       float64
	Zmin, Zmax       float64
	Xmid, Ymid, Zmid float64
}

// Builds a new BoundingBox from its min and max values on each axis
func NewBoundingBox(Xmin, Xmax, Ymin, Ymax, Zmin, Zmax float64) *BoundingBox {
	return &BoundingBox{
		Xmin: Xmin,
		Xmax: Xmax,
		Ymin: Ymin,
		Ymax: Ymax,
		Zmin: Zmin,
		Zmax: Zmax,
		Xmid: (Xmin + Xmax) / 2,
		Ymid: (Ymin + Ymax) / 2,
		Zmid: (Zmin + Zmax) / 2,
	}
}

func (b *BoundingBox) Width() float64 {
	return b.Xmax - b.Xmin
}

func (b *BoundingBox) Length() float64 {
	return b.Ymax - b.Ymin
}

func (b *BoundingBox) Height() float64 {
	return b.Zmax - b.Zmin
}

// Volume of the box. Degenerate boxes (flat or empty scans) have zero volume.
func (b *BoundingBox) Volume() float64 {
	return math.Abs(b.Width() * b.Length() * b.Height())
}

// Largest of the three side lengths
func (b *BoundingBox) MaxDimension() float64 {
	return math.Max(math.Abs(b.Width()), math.Max(math.Abs(b.Length()), math.Abs(b.Height())))
}

// Returns the box as a (xmin, ymin, zmin, xmax, ymax, zmax) array
func (b *BoundingBox) GetAsArray() [6]float64 {
	return [6]float64{b.Xmin, b.Ymin, b.Zmin, b.Xmax, b.Ymax, b.Zmax}
}
