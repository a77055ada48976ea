package conveyor

import (
	"math"

	"cargohold.ai/internal/sim/mathx"
)

// Mover is the world-facing side of a belt: what sits on a cell and how to move it.
type Mover interface {
	// MovableAt returns ids of loose objects on pos in a stable order.
	MovableAt(pos mathx.Vec2i) []string
	// MoveObject moves one object; it reports false when the move was refused.
	MoveObject(id string, to mathx.Vec2i) bool
}

// Belt is one conveyor cell. Each whole unit of accumulated rate moves the objects on the
// cell one tile along its direction, reversed for negative rates.
type Belt struct {
	id    string
	pos   mathx.Vec2i
	dir   mathx.Vec2i
	mover Mover

	sw       *Switch
	rate     float64
	progress float64
	visible  SwitchState
	moved    int
}

func NewBelt(id string, pos, dir mathx.Vec2i, mover Mover) *Belt {
	if dir.IsZero() {
		dir = mathx.Vec2i{X: 1}
	}
	return &Belt{id: id, pos: pos, dir: dir, mover: mover}
}

func (b *Belt) ActuatorID() string        { return b.id }
func (b *Belt) Pos() mathx.Vec2i          { return b.pos }
func (b *Belt) Dir() mathx.Vec2i          { return b.dir }
func (b *Belt) Switch() *Switch           { return b.sw }
func (b *Belt) Rate() float64             { return b.rate }
func (b *Belt) VisibleState() SwitchState { return b.visible }
func (b *Belt) Moved() int                { return b.moved }
func (b *Belt) SetSwitchRef(sw *Switch)   { b.sw = sw }

func (b *Belt) UpdateState() {
	if b.sw == nil {
		b.visible = Off
		return
	}
	b.visible = b.sw.State()
}

func (b *Belt) MoveBelt(rate float64) {
	b.rate = rate
	if rate == 0 {
		b.progress = 0
		return
	}
	b.progress += math.Abs(rate)
	for b.progress >= 1 {
		b.progress--
		b.step(mathx.SignF(rate))
	}
}

func (b *Belt) Progress() float64 { return b.progress }

// RestoreMotion reinstates persisted motion without moving anything.
func (b *Belt) RestoreMotion(rate, progress float64) {
	b.rate = rate
	b.progress = progress
}

// Unlink drops the controller reference, e.g. when the switch is deconstructed.
func (b *Belt) Unlink() {
	b.sw = nil
	b.rate = 0
	b.progress = 0
	b.visible = Off
}

func (b *Belt) step(sign int) {
	if b.mover == nil || sign == 0 {
		return
	}
	to := b.pos.Add(b.dir.Scale(sign))
	for _, id := range b.mover.MovableAt(b.pos) {
		if b.mover.MoveObject(id, to) {
			b.moved++
		}
	}
}
