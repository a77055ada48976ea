package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"

	"cargohold.ai/internal/sim/mathx"
)

// stateDigest hashes all simulation state that replays must reproduce.
// Resume tokens and client attachments are excluded.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
	putInt := func(v int) { putU64(uint64(int64(v))) }
	putF := func(v float64) { putU64(math.Float64bits(v)) }
	putPos := func(p mathx.Vec2i) {
		putInt(p.X)
		putInt(p.Y)
	}

	putU64(nowTick)
	putU64(w.nextPlayerNum.Load())
	putU64(w.nextObjectNum.Load())

	for _, o := range w.sortedObjects() {
		writeString(h, o.ID)
		writeString(h, o.Kind)
		putPos(o.Pos)
		writeString(h, o.Holder)
		writeString(h, o.Slot)
		putInt(o.Count)
		h.Write([]byte{boolByte(o.Visible), boolByte(o.Pickupable), boolByte(o.Pushable)})
		if sw := o.Switch; sw != nil {
			h.Write([]byte{'S', byte(sw.State()), byte(sw.PrevMoveState())})
			for _, id := range sw.ActuatorIDs() {
				writeString(h, id)
			}
		}
		if b := o.Belt; b != nil {
			h.Write([]byte{'B', byte(b.VisibleState())})
			putF(b.Rate())
			putF(b.Progress())
		}
		if pkg := o.Package; pkg != nil {
			h.Write([]byte{'P', byte(pkg.Type), byte(pkg.Sprite), byte(pkg.Size)})
			writeString(h, pkg.ContentID)
		}
		if ex := o.Explosive; ex != nil {
			h.Write([]byte{'E', boolByte(ex.Armed), boolByte(ex.OnObject), boolByte(ex.CanPickup), boolByte(ex.Pushable)})
			writeString(h, ex.AttachedTo)
			writeString(h, ex.Emitter)
			putF(ex.Scale)
			putU64(ex.DetonateAt)
		}
	}

	for _, p := range w.sortedPlayers() {
		writeString(h, p.ID)
		putPos(p.Pos)
		writeString(h, string(p.Intent))
		writeString(h, p.ActiveHand)
		slots := make([]string, 0, len(p.Slots))
		for k := range p.Slots {
			slots = append(slots, k)
		}
		sort.Strings(slots)
		for _, k := range slots {
			writeString(h, k)
			writeString(h, p.Slots[k])
		}
		if pr := p.Progress; pr != nil {
			writeString(h, pr.Kind)
			writeString(h, pr.Req.Target)
			putU64(pr.DoneTick)
		}
	}

	for _, k := range w.sched.Keys() {
		writeString(h, k)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(s)))
	h.Write(tmp[:])
	h.Write([]byte(s))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
