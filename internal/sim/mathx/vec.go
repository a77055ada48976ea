package mathx

// Vec2i is a tile coordinate on the station grid.
type Vec2i struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (v Vec2i) Add(o Vec2i) Vec2i { return Vec2i{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2i) Scale(k int) Vec2i { return Vec2i{X: v.X * k, Y: v.Y * k} }

func (v Vec2i) IsZero() bool { return v.X == 0 && v.Y == 0 }

func (v Vec2i) ToArray() [2]int { return [2]int{v.X, v.Y} }

func FromArray(a [2]int) Vec2i { return Vec2i{X: a[0], Y: a[1]} }

// CardinalDirs lists the four grid neighbours in a fixed order.
var CardinalDirs = []Vec2i{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
}

func AbsInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func Manhattan(a, b Vec2i) int {
	return AbsInt(a.X-b.X) + AbsInt(a.Y-b.Y)
}

// Chebyshev is the king-move distance; interaction range uses it.
func Chebyshev(a, b Vec2i) int {
	dx := AbsInt(a.X - b.X)
	dy := AbsInt(a.Y - b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func SignF(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
