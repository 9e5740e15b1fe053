package core

import "math"

// Vec3 is a position or displacement in world coordinates (metres).
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Box is an axis-aligned bounding box for a solid world entity
// (a tree, a building, ...). Min and Max are opposite corners.
type Box struct {
	Name string
	Min  Vec3
	Max  Vec3
}

// Contains reports whether p lies inside or on the surface of the box.
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// SegmentIntersects reports whether the straight segment p1->p2 passes
// through the box. It uses the slab method: the segment is clipped
// against the three axis-aligned slab pairs and intersects the box iff
// a non-empty parameter interval inside [0,1] survives.
func (b Box) SegmentIntersects(p1, p2 Vec3) bool {
	d := p2.Sub(p1)

	tMin := 0.0
	tMax := 1.0

	for axis := 0; axis < 3; axis++ {
		var origin, dir, lo, hi float64
		switch axis {
		case 0:
			origin, dir, lo, hi = p1.X, d.X, b.Min.X, b.Max.X
		case 1:
			origin, dir, lo, hi = p1.Y, d.Y, b.Min.Y, b.Max.Y
		default:
			origin, dir, lo, hi = p1.Z, d.Z, b.Min.Z, b.Max.Z
		}

		if dir == 0 {
			// Segment runs parallel to this slab pair; it can only hit
			// the box if the origin lies between the planes.
			if origin < lo || origin > hi {
				return false
			}
			continue
		}

		t1 := (lo - origin) / dir
		t2 := (hi - origin) / dir
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return false
		}
	}

	return true
}
