package conveyor

import "fmt"

const (
	DefaultSpeed             = 0.5
	DefaultRedriveEveryTicks = 5
)

// Actuator is a device driven by a switch, usually a Belt.
type Actuator interface {
	ActuatorID() string
	// MoveBelt commands a signed rate; 0 stops the device.
	MoveBelt(rate float64)
	// SetSwitchRef hands the device a reference to its controller.
	SetSwitchRef(sw *Switch)
	// UpdateState asks the device to re-read the controller state.
	UpdateState()
}

// Scheduler registers keyed periodic callbacks. *sched.Manager implements it.
type Scheduler interface {
	Add(key string, everyTicks int, fn func(nowTick uint64))
	AddAt(key string, everyTicks int, firstDue uint64, fn func(nowTick uint64))
	NextDue(key string) (uint64, bool)
	Remove(key string)
}

type SwitchConfig struct {
	ID                string
	Speed             float64
	RedriveEveryTicks int
}

// StateChangeFn observes every applied transition, including Off -> Off.
type StateChangeFn func(sw *Switch, from, to SwitchState)

// Switch owns a SwitchState and drives its registered actuators from it.
// It must only be used from the world loop goroutine.
type Switch struct {
	id    string
	speed float64
	every int
	sched Scheduler

	state    SwitchState
	prevMove SwitchState

	actuators []Actuator
	listeners []StateChangeFn
}

func NewSwitch(cfg SwitchConfig, sched Scheduler) *Switch {
	speed := cfg.Speed
	if speed <= 0 {
		speed = DefaultSpeed
	}
	every := cfg.RedriveEveryTicks
	if every <= 0 {
		every = DefaultRedriveEveryTicks
	}
	return &Switch{id: cfg.ID, speed: speed, every: every, sched: sched}
}

func (s *Switch) ID() string                 { return s.id }
func (s *Switch) State() SwitchState         { return s.state }
func (s *Switch) PrevMoveState() SwitchState { return s.prevMove }
func (s *Switch) Speed() float64             { return s.speed }
func (s *Switch) RedriveEveryTicks() int     { return s.every }
func (s *Switch) Sprite() int                { return int(s.state) }

// Rate is the signed command for the current state.
func (s *Switch) Rate() float64 { return float64(s.state.Sign()) * s.speed }

func (s *Switch) Actuators() []Actuator {
	out := make([]Actuator, len(s.actuators))
	copy(out, s.actuators)
	return out
}

func (s *Switch) ActuatorIDs() []string {
	out := make([]string, 0, len(s.actuators))
	for _, a := range s.actuators {
		if a != nil {
			out = append(out, a.ActuatorID())
		}
	}
	return out
}

func (s *Switch) OnStateChange(fn StateChangeFn) {
	if fn != nil {
		s.listeners = append(s.listeners, fn)
	}
}

// Start is the spawn hook: the switch comes up Off and introduces itself to its actuators.
func (s *Switch) Start() {
	s.state = Off
	s.setActuatorRefs()
}

// Stop is the despawn hook.
func (s *Switch) Stop() {
	s.SetState(Off)
	if s.sched != nil {
		s.sched.Remove(s.redriveKey())
	}
}

// Toggle turns a running switch off, or turns an idle switch on in the direction
// opposite to the one it last ran in.
func (s *Switch) Toggle() {
	switch s.state {
	case Off:
		if s.prevMove == Forward {
			s.SetState(Backward)
		} else {
			s.SetState(Forward)
		}
	case Forward, Backward:
		s.SetState(Off)
	default:
		panic(fmt.Sprintf("conveyor: switch %s in invalid state %d", s.id, int(s.state)))
	}
}

// SetState applies next unconditionally.
func (s *Switch) SetState(next SwitchState) {
	if !next.Valid() {
		panic(fmt.Sprintf("conveyor: invalid switch state %d", int(next)))
	}
	from := s.state
	s.state = next

	if next != Off {
		s.prevMove = next
		if s.sched != nil {
			s.sched.Add(s.redriveKey(), s.every, s.redrive)
		}
		s.drive(s.Rate())
	} else {
		if s.sched != nil {
			s.sched.Remove(s.redriveKey())
		}
		s.drive(0)
	}

	for _, a := range s.actuators {
		if a != nil {
			a.UpdateState()
		}
	}
	for _, fn := range s.listeners {
		fn(s, from, next)
	}
}

// NextRedrive is the tick of the next scheduled redrive, 0 when idle.
func (s *Switch) NextRedrive() uint64 {
	if s.sched == nil {
		return 0
	}
	due, _ := s.sched.NextDue(s.redriveKey())
	return due
}

// Restore reinstates persisted state without replaying the alternation history or
// commanding the actuators; their motion is restored separately. A zero nextRedrive
// schedules the first redrive one period from now.
func (s *Switch) Restore(state, prevMove SwitchState, nextRedrive uint64) {
	if !state.Valid() {
		panic(fmt.Sprintf("conveyor: invalid switch state %d", int(state)))
	}
	s.state = state
	if prevMove.Valid() {
		s.prevMove = prevMove
	}
	if s.sched != nil {
		if state != Off {
			s.sched.AddAt(s.redriveKey(), s.every, nextRedrive, s.redrive)
		} else {
			s.sched.Remove(s.redriveKey())
		}
	}
	s.setActuatorRefs()
	for _, a := range s.actuators {
		if a != nil {
			a.UpdateState()
		}
	}
}

// RegisterActuators adds the given actuators once each and re-sends the switch
// reference to every actuator so neighbours can sync up.
func (s *Switch) RegisterActuators(list ...Actuator) {
	for _, a := range list {
		if a == nil || s.has(a) {
			continue
		}
		s.actuators = append(s.actuators, a)
	}
	s.setActuatorRefs()
}

// RemoveActuator forgets one actuator, e.g. a despawned belt.
func (s *Switch) RemoveActuator(a Actuator) {
	for i, cur := range s.actuators {
		if cur == a {
			s.actuators = append(s.actuators[:i], s.actuators[i+1:]...)
			return
		}
	}
}

// Deconstruct stops the switch and forgets its actuators.
func (s *Switch) Deconstruct() {
	s.SetState(Off)
	s.actuators = nil
}

func (s *Switch) has(a Actuator) bool {
	for _, cur := range s.actuators {
		if cur == a {
			return true
		}
	}
	return false
}

func (s *Switch) setActuatorRefs() {
	for _, a := range s.actuators {
		if a != nil {
			a.SetSwitchRef(s)
		}
	}
}

func (s *Switch) drive(rate float64) {
	for _, a := range s.actuators {
		if a != nil {
			a.MoveBelt(rate)
		}
	}
}

func (s *Switch) redrive(uint64) {
	if s.state == Off {
		return
	}
	s.drive(s.Rate())
}

func (s *Switch) redriveKey() string { return "conveyor_switch:" + s.id }
