package world

import (
	"fmt"
	"sort"
	"strings"

	"cargohold.ai/internal/sim/cargo"
	"cargohold.ai/internal/sim/conveyor"
	"cargohold.ai/internal/sim/explosive"
	"cargohold.ai/internal/sim/mathx"
)

// Object kinds with built-in behaviour. Any other kind is a plain item.
const (
	KindSwitch    = "conveyor_switch"
	KindBelt      = "conveyor_belt"
	KindPackage   = "wrapped_package"
	KindExplosive = "explosive"
	KindEmitter   = "signal_emitter"
	KindWrench    = "wrench"
	KindMultitool = "multitool"
	KindDoor      = "door"
	KindLocker    = "locker"
	KindCrate     = "crate"
)

const (
	ToolWrench    = "WRENCH"
	ToolMultitool = "MULTITOOL"
)

// Object is anything placed in the world. A held object has a Holder and Slot and takes its
// position from the holder.
type Object struct {
	ID      string
	Kind    string
	Name    string
	Pos     mathx.Vec2i
	Visible bool
	Holder  string
	Slot    string
	Count   int
	Scale   float64

	Pickupable bool
	Pushable   bool
	Physics    bool
	Door       bool
	Emitter    bool
	Tool       string

	Switch    *conveyor.Switch
	Belt      *conveyor.Belt
	Package   *cargo.Package
	Explosive *explosive.Explosive
}

type archetype struct {
	name       string
	pickupable bool
	pushable   bool
	physics    bool
	door       bool
	emitter    bool
	tool       string
}

var archetypes = map[string]archetype{
	KindSwitch:    {name: "conveyor belt switch"},
	KindBelt:      {name: "conveyor belt"},
	KindPackage:   {name: "wrapped package", pickupable: true, pushable: true, physics: true},
	KindExplosive: {name: "C-4", pickupable: true, pushable: true, physics: true},
	KindEmitter:   {name: "remote signaling device", pickupable: true, pushable: true, physics: true, emitter: true},
	KindWrench:    {name: "wrench", pickupable: true, pushable: true, physics: true, tool: ToolWrench},
	KindMultitool: {name: "multitool", pickupable: true, pushable: true, physics: true, tool: ToolMultitool},
	KindDoor:      {name: "airlock", door: true},
	KindLocker:    {name: "locker", pushable: true, physics: true},
	KindCrate:     {name: "crate", pushable: true, physics: true},
}

func archetypeFor(kind string) archetype {
	if a, ok := archetypes[kind]; ok {
		return a
	}
	return archetype{
		name:       strings.ToLower(strings.ReplaceAll(kind, "_", " ")),
		pickupable: true,
		pushable:   true,
		physics:    true,
	}
}

func (o *Object) canPickup() bool {
	if o.Explosive != nil && !o.Explosive.CanPickup {
		return false
	}
	return o.Pickupable
}

func (o *Object) canPush() bool {
	if o.Explosive != nil && !o.Explosive.Pushable {
		return false
	}
	return o.Pushable
}

func (o *Object) held() bool { return o.Holder != "" }

func (o *Object) scale() float64 {
	if o.Explosive != nil {
		return o.Explosive.Scale
	}
	if o.Scale == 0 {
		return 1
	}
	return o.Scale
}

// stateLabel is the short state string shown to clients.
func (o *Object) stateLabel() string {
	switch {
	case o.Switch != nil:
		return o.Switch.State().String()
	case o.Belt != nil:
		return o.Belt.VisibleState().String()
	case o.Explosive != nil && o.Explosive.Armed:
		return "ARMED"
	case o.Explosive != nil && o.Explosive.OnObject:
		return "ATTACHED"
	}
	return ""
}

func (o *Object) sprite() int {
	switch {
	case o.Switch != nil:
		return o.Switch.Sprite()
	case o.Package != nil:
		return o.Package.Sprite
	}
	return 0
}

func (w *World) newObjectID(kind string) string {
	n := w.nextObjectNum.Add(1)
	return fmt.Sprintf("%s_%d", kind, n)
}

// spawnObject creates a visible plain object. Components are attached by the caller.
func (w *World) spawnObject(id, kind string, pos mathx.Vec2i) *Object {
	if id == "" {
		id = w.newObjectID(kind)
	}
	a := archetypeFor(kind)
	o := &Object{
		ID:         id,
		Kind:       kind,
		Name:       a.name,
		Pos:        pos,
		Visible:    true,
		Count:      1,
		Scale:      1,
		Pickupable: a.pickupable,
		Pushable:   a.pushable,
		Physics:    a.physics,
		Door:       a.door,
		Emitter:    a.emitter,
		Tool:       a.tool,
	}
	w.objects[id] = o
	w.attachComponents(o)
	return o
}

// attachComponents gives kinds with behaviour their runtime component.
func (w *World) attachComponents(o *Object) {
	switch o.Kind {
	case KindPackage:
		if o.Package == nil {
			o.Package = &cargo.Package{ID: o.ID, Size: cargo.SizeMedium}
		}
	case KindExplosive:
		if o.Explosive == nil {
			o.Explosive = explosive.New(o.ID, w.explosiveConfig(), w.sched)
		}
	}
}

func (w *World) explosiveConfig() explosive.Config {
	return explosive.Config{
		PollEveryTicks: w.cfg.Explosive.PollEveryTicks,
		ArmTimerTicks:  w.cfg.Explosive.ArmTimerTicks,
		Strength:       w.cfg.Explosive.Strength,
		AttachedScale:  w.cfg.Explosive.AttachedScale,
	}
}

// despawn removes an object and runs its teardown hooks.
func (w *World) despawn(id string) {
	o := w.objects[id]
	if o == nil {
		return
	}
	if o.Switch != nil {
		o.Switch.Stop()
	}
	if o.Explosive != nil {
		o.Explosive.Disable()
	}
	if o.Belt != nil {
		if sw := o.Belt.Switch(); sw != nil {
			sw.RemoveActuator(o.Belt)
		}
		o.Belt.Unlink()
	}
	w.releaseFromSlot(o)
	delete(w.objects, id)
}

func (w *World) releaseFromSlot(o *Object) {
	if !o.held() {
		return
	}
	if p := w.players[o.Holder]; p != nil && p.Slots[o.Slot] == o.ID {
		delete(p.Slots, o.Slot)
	}
	o.Holder = ""
	o.Slot = ""
}

// objectPos is where an object is, following its holder when held.
func (w *World) objectPos(o *Object) mathx.Vec2i {
	if o.held() {
		if p := w.players[o.Holder]; p != nil {
			return p.Pos
		}
	}
	return o.Pos
}

func (w *World) objectKind(id string) string {
	if o := w.objects[id]; o != nil {
		return o.Kind
	}
	return ""
}

// objectsAt returns loose visible objects on pos sorted by id.
func (w *World) objectsAt(pos mathx.Vec2i) []*Object {
	var out []*Object
	for _, o := range w.objects {
		if o.held() || !o.Visible || o.Pos != pos {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) sortedObjects() []*Object {
	out := make([]*Object, 0, len(w.objects))
	for _, o := range w.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w *World) beltAt(pos mathx.Vec2i) *conveyor.Belt {
	for _, o := range w.objectsAt(pos) {
		if o.Belt != nil {
			return o.Belt
		}
	}
	return nil
}

func (w *World) doorAt(pos mathx.Vec2i) bool {
	for _, o := range w.objectsAt(pos) {
		if o.Door {
			return true
		}
	}
	return false
}
