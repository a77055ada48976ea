// Package explosive implements explosives that can be stuck onto walls, objects and
// players, armed on a timer and optionally detonated by a linked signal emitter.
package explosive

import (
	"fmt"

	"cargohold.ai/internal/sim/interact"
	"cargohold.ai/internal/sim/mathx"
)

const (
	BeepSound      = "TIMER_BEEP"
	OptionDeattach = "Deattach"
	HoverArmed     = "It appears to be armed!"
	HintAttach     = "Place the bomb on an object to arm it while in harm intent."
	AttachedScale  = 0.6
)

// Env is the world as seen by an explosive.
type Env interface {
	Name(id string) string
	PerformerName(playerID string) string
	SlotOf(id string) (holder, slot string, ok bool)
	ObjectPos(id string) (mathx.Vec2i, bool)
	Exists(id string) bool
	HasPhysics(id string) bool
	// AttachBlockedAt reports a door or a loose pickupable item on the tile.
	AttachBlockedAt(pos mathx.Vec2i) bool
	IsSignalEmitter(id string) bool

	Drop(id string, pos mathx.Vec2i)
	Teleport(id string, pos mathx.Vec2i)
	PlaySound(sound string, pos mathx.Vec2i)
	Examine(playerID, text string)
	ActionMessage(playerID, selfText, othersText string)
	Explode(id string, pos mathx.Vec2i, strength int)
	Despawn(id string)
}

type Scheduler interface {
	Add(key string, everyTicks int, fn func(nowTick uint64))
	Remove(key string)
}

type Config struct {
	PollEveryTicks int
	ArmTimerTicks  int
	Strength       int
	AttachedScale  float64
}

type Explosive struct {
	ID string

	Armed      bool
	OnObject   bool
	AttachedTo string
	Emitter    string
	Scale      float64
	CanPickup  bool
	Pushable   bool
	DetonateAt uint64

	cfg   Config
	sched Scheduler
}

func New(id string, cfg Config, sched Scheduler) *Explosive {
	if cfg.PollEveryTicks <= 0 {
		cfg.PollEveryTicks = 1
	}
	if cfg.ArmTimerTicks <= 0 {
		cfg.ArmTimerTicks = 100
	}
	if cfg.AttachedScale <= 0 {
		cfg.AttachedScale = AttachedScale
	}
	return &Explosive{
		ID:        id,
		Scale:     1,
		CanPickup: true,
		Pushable:  true,
		cfg:       cfg,
		sched:     sched,
	}
}

// WillAttach is the eligibility check for sticking a held explosive onto a target.
// Rejections explain themselves to the performer.
func (e *Explosive) WillAttach(env Env, req interact.Request) bool {
	if _, _, ok := env.SlotOf(e.ID); !ok {
		return false
	}
	// Controls lock once armed; moving an armed charge around breaks them.
	if e.Armed {
		env.Examine(req.Performer, fmt.Sprintf("The %s is already armed!", env.Name(e.ID)))
		return false
	}
	if req.Intent != interact.IntentHarm {
		env.Examine(req.Performer, fmt.Sprintf("You must be on harm intent to attach the %s.", env.Name(e.ID)))
		return false
	}
	return true
}

// Attach finishes an attach action. It reports whether the explosive was placed.
func (e *Explosive) Attach(env Env, req interact.Request) bool {
	if req.Target != "" {
		if tp, ok := env.ObjectPos(req.Target); ok && env.AttachBlockedAt(tp) {
			env.Examine(req.Performer, fmt.Sprintf("The %s isn't a good spot to arm the explosive on..", env.Name(req.Target)))
			return false
		}
	}

	env.Drop(e.ID, req.TargetPos)
	if req.Target != "" && env.HasPhysics(req.Target) {
		e.AttachedTo = req.Target
		if e.sched != nil {
			e.sched.Add(e.pollKey(), e.cfg.PollEveryTicks, func(uint64) { e.UpdatePosition(env) })
		}
	}
	e.Scale = e.cfg.AttachedScale
	e.OnObject = true
	e.CanPickup = false
	e.Pushable = false

	pos, _ := env.ObjectPos(e.ID)
	env.PlaySound(BeepSound, pos)
	self := env.Name(e.ID)
	target := env.Name(req.Target)
	env.ActionMessage(req.Performer,
		fmt.Sprintf("You attach the %s to %s", self, target),
		fmt.Sprintf("%s attaches a %s to %s!", env.PerformerName(req.Performer), self, target))
	return true
}

// UpdatePosition keeps an explosive riding on a moving target.
func (e *Explosive) UpdatePosition(env Env) {
	if e.AttachedTo == "" {
		return
	}
	tp, ok := env.ObjectPos(e.AttachedTo)
	if !ok {
		return
	}
	if cur, ok := env.ObjectPos(e.ID); ok && cur == tp {
		return
	}
	env.Teleport(e.ID, tp)
}

func (e *Explosive) Deattach() {
	e.OnObject = false
	e.CanPickup = true
	e.Pushable = true
	e.Scale = 1
	if e.sched != nil {
		e.sched.Remove(e.pollKey())
	}
	e.AttachedTo = ""
}

func (e *Explosive) RightClickOptions() []string {
	if !e.OnObject {
		return nil
	}
	return []string{OptionDeattach}
}

func (e *Explosive) WillRightClick(req interact.Request) bool {
	return e.OnObject && req.Option == OptionDeattach
}

// WillHandApply: an attached explosive opens its controls for an empty hand, or accepts a
// signal emitter to link.
func (e *Explosive) WillHandApply(env Env, req interact.Request) bool {
	if e.OnObject && req.HandObject == "" {
		return true
	}
	if !e.OnObject {
		return false
	}
	return env.IsSignalEmitter(req.HandObject)
}

func (e *Explosive) PerformHandApply(env Env, req interact.Request, nowTick uint64) {
	if e.HackEmitter(env, req) {
		return
	}
	e.OpenControls(env, req, nowTick)
}

func (e *Explosive) PerformHandActivate(env Env, req interact.Request, nowTick uint64) {
	e.OpenControls(env, req, nowTick)
}

// HackEmitter links the emitter held in hand. It reports whether it consumed the request.
func (e *Explosive) HackEmitter(env Env, req interact.Request) bool {
	if req.HandObject == "" || !env.IsSignalEmitter(req.HandObject) {
		return false
	}
	e.Emitter = req.HandObject
	env.Examine(req.Performer, fmt.Sprintf("You link the %s to the %s.", env.Name(req.HandObject), env.Name(e.ID)))
	return true
}

// OpenControls stands in for the arming panel: it arms an unarmed explosive.
func (e *Explosive) OpenControls(env Env, req interact.Request, nowTick uint64) {
	if e.Armed {
		env.Examine(req.Performer, fmt.Sprintf("The %s is already armed!", env.Name(e.ID)))
		return
	}
	e.Arm(env, nowTick)
	env.Examine(req.Performer, fmt.Sprintf("You arm the %s.", env.Name(e.ID)))
}

func (e *Explosive) Arm(env Env, nowTick uint64) {
	if e.Armed {
		return
	}
	e.Armed = true
	e.DetonateAt = nowTick + uint64(e.cfg.ArmTimerTicks)
	pos, _ := env.ObjectPos(e.ID)
	env.PlaySound(BeepSound, pos)
	if e.sched != nil {
		e.sched.Add(e.armKey(), e.cfg.ArmTimerTicks, func(uint64) { e.Detonate(env) })
	}
}

// Restore re-registers the callbacks a persisted explosive needs.
func (e *Explosive) Restore(env Env, nowTick uint64) {
	if e.sched == nil {
		return
	}
	if e.AttachedTo != "" {
		e.sched.Add(e.pollKey(), e.cfg.PollEveryTicks, func(uint64) { e.UpdatePosition(env) })
	}
	if e.Armed {
		remaining := 1
		if e.DetonateAt > nowTick {
			remaining = int(e.DetonateAt - nowTick)
		}
		e.sched.Add(e.armKey(), remaining, func(uint64) { e.Detonate(env) })
	}
}

// SignalReceived detonates an armed explosive linked to emitter.
func (e *Explosive) SignalReceived(env Env, emitter string) bool {
	if !e.Armed || e.Emitter == "" || e.Emitter != emitter {
		return false
	}
	e.Detonate(env)
	return true
}

func (e *Explosive) Detonate(env Env) {
	e.Disable()
	pos, _ := env.ObjectPos(e.ID)
	env.Explode(e.ID, pos, e.cfg.Strength)
	env.Despawn(e.ID)
}

// Disable is the teardown hook.
func (e *Explosive) Disable() {
	e.Emitter = ""
	if e.sched != nil {
		e.sched.Remove(e.pollKey())
		e.sched.Remove(e.armKey())
	}
}

func (e *Explosive) HoverTip() string {
	if !e.Armed {
		return ""
	}
	return HoverArmed
}

func (e *Explosive) InteractionHints() []string {
	if e.Armed {
		return nil
	}
	return []string{HintAttach}
}

func (e *Explosive) pollKey() string { return "explosive_poll:" + e.ID }
func (e *Explosive) armKey() string  { return "explosive_arm:" + e.ID }
