package conveyor

import (
	"fmt"
	"strings"
)

// SwitchState is the mode of a conveyor switch. The numeric value doubles as the
// switch sprite index.
type SwitchState int

const (
	Off SwitchState = iota
	Forward
	Backward
)

func (s SwitchState) Valid() bool { return s >= Off && s <= Backward }

func (s SwitchState) String() string {
	switch s {
	case Off:
		return "OFF"
	case Forward:
		return "FORWARD"
	case Backward:
		return "BACKWARD"
	default:
		return fmt.Sprintf("SwitchState(%d)", int(s))
	}
}

// Sign is +1 for Forward, -1 for Backward and 0 for Off.
func (s SwitchState) Sign() int {
	switch s {
	case Forward:
		return 1
	case Backward:
		return -1
	default:
		return 0
	}
}

func ParseSwitchState(v string) (SwitchState, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "OFF":
		return Off, nil
	case "FORWARD":
		return Forward, nil
	case "BACKWARD":
		return Backward, nil
	default:
		return Off, fmt.Errorf("unknown switch state %q", v)
	}
}
