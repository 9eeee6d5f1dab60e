package collision

type Vector3f struct {
	X float32
	Y float32
	Z float32
}

func Add(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func Sub(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func Mul(a Vector3f, s float32) Vector3f {
	return Vector3f{a.X * s, a.Y * s, a.Z * s}
}

func Cross(a Vector3f, b Vector3f) Vector3f {
	return Vector3f{a.Y*b.Z - a.Z*b.Y, a.Z*b.X - a.X*b.Z, a.X*b.Y - a.Y*b.X}
}

func minComponents(a Vector3f, b Vector3f) Vector3f {
	if b.X < a.X {
		a.X = b.X
	}
	if b.Y < a.Y {
		a.Y = b.Y
	}
	if b.Z < a.Z {
		a.Z = b.Z
	}
	return a
}

func maxComponents(a Vector3f, b Vector3f) Vector3f {
	if b.X > a.X {
		a.X = b.X
	}
	if b.Y > a.Y {
		a.Y = b.Y
	}
	if b.Z > a.Z {
		a.Z = b.Z
	}
	return a
}

// Quaternion is a rotation. The zero value is treated as identity so
// objects placed without a rotation behave as unrotated.
type Quaternion struct {
	X float32
	Y float32
	Z float32
	W float32
}

func (q Quaternion) isIdentity() bool {
	if q == (Quaternion{}) {
		return true
	}
	return q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 1
}

// Rotate applies the rotation to v without normalizing q.
func (q Quaternion) Rotate(v Vector3f) Vector3f {
	if q.isIdentity() {
		return v
	}

	u := Vector3f{q.X, q.Y, q.Z}
	c := Add(Cross(u, v), Mul(v, q.W))
	return Add(v, Mul(Cross(u, c), 2))
}

// Transform places a local-space volume into scene space.
type Transform struct {
	Translation Vector3f
	Rotation    Quaternion
}

// Volume is an axis-aligned bounding box.
type Volume struct {
	Min Vector3f
	Max Vector3f
}

func NewVolume(min Vector3f, max Vector3f) Volume {
	return Volume{
		Min: minComponents(min, max),
		Max: maxComponents(min, max),
	}
}

func (v Volume) Center() Vector3f {
	return Mul(Add(v.Min, v.Max), 0.5)
}

// Union returns the smallest volume containing both.
func (v Volume) Union(o Volume) Volume {
	return Volume{
		Min: minComponents(v.Min, o.Min),
		Max: maxComponents(v.Max, o.Max),
	}
}

func (v Volume) Extents() Vector3f {
	// Half-Extents!
	return Mul(Sub(v.Max, v.Min), 0.5)
}

// Transformed rotates the volume's corners, refits the box around them and
// translates it.
func (v Volume) Transformed(t Transform) Volume {
	if t.Rotation.isIdentity() {
		return Volume{
			Min: Add(v.Min, t.Translation),
			Max: Add(v.Max, t.Translation),
		}
	}

	corners := [8]Vector3f{
		{v.Min.X, v.Min.Y, v.Min.Z},
		{v.Max.X, v.Min.Y, v.Min.Z},
		{v.Min.X, v.Max.Y, v.Min.Z},
		{v.Max.X, v.Max.Y, v.Min.Z},
		{v.Min.X, v.Min.Y, v.Max.Z},
		{v.Max.X, v.Min.Y, v.Max.Z},
		{v.Min.X, v.Max.Y, v.Max.Z},
		{v.Max.X, v.Max.Y, v.Max.Z},
	}

	min := t.Rotation.Rotate(corners[0])
	max := min
	for _, c := range corners[1:] {
		r := t.Rotation.Rotate(c)
		min = minComponents(min, r)
		max = maxComponents(max, r)
	}

	return Volume{
		Min: Add(min, t.Translation),
		Max: Add(max, t.Translation),
	}
}

// Overlaps reports strict interior overlap on all three axes. Touching
// faces are not a collision.
func (a Volume) Overlaps(b Volume) bool {
	if a.Min.X >= b.Max.X {
		return false
	}
	if a.Max.X <= b.Min.X {
		return false
	}
	if a.Min.Y >= b.Max.Y {
		return false
	}
	if a.Max.Y <= b.Min.Y {
		return false
	}
	if a.Min.Z >= b.Max.Z {
		return false
	}
	if a.Max.Z <= b.Min.Z {
		return false
	}

	// overlap on all three axes -> must overlap
	return true
}
