// Package interact models player interactions as a single tagged request type and
// dispatches them through a table of eligibility-check-then-apply handlers.
package interact

import "cargohold.ai/internal/sim/mathx"

type Kind string

const (
	HandApply           Kind = "HAND_APPLY"
	InventoryApply      Kind = "INVENTORY_APPLY"
	PositionalHandApply Kind = "POSITIONAL_HAND_APPLY"
	HandActivate        Kind = "HAND_ACTIVATE"
	AiActivate          Kind = "AI_ACTIVATE"
	RightClick          Kind = "RIGHT_CLICK"
	MultitoolLink       Kind = "MULTITOOL_LINK"
)

var kinds = map[Kind]struct{}{
	HandApply:           {},
	InventoryApply:      {},
	PositionalHandApply: {},
	HandActivate:        {},
	AiActivate:          {},
	RightClick:          {},
	MultitoolLink:       {},
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

type Intent string

const (
	IntentHelp   Intent = "HELP"
	IntentDisarm Intent = "DISARM"
	IntentGrab   Intent = "GRAB"
	IntentHarm   Intent = "HARM"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentHelp, IntentDisarm, IntentGrab, IntentHarm:
		return true
	}
	return false
}

type ClickType string

const (
	ClickNormal ClickType = "NORMAL"
	ClickShift  ClickType = "SHIFT"
	ClickCtrl   ClickType = "CTRL"
	ClickAlt    ClickType = "ALT"
)

// Request is one interaction attempt. Which fields matter depends on Kind:
//
//	HAND_APPLY             Target, HandObject
//	INVENTORY_APPLY        Target (the item in a slot), UsedObject
//	POSITIONAL_HAND_APPLY  Target, TargetPos, HandObject (the applied item)
//	HAND_ACTIVATE          HandObject
//	AI_ACTIVATE            Target, ClickType
//	RIGHT_CLICK            Target, Option
//	MULTITOOL_LINK         Target, Masters
type Request struct {
	ID        string
	Kind      Kind
	Performer string

	Target     string
	HandObject string
	UsedObject string
	TargetPos  mathx.Vec2i

	Intent    Intent
	ClickType ClickType
	Option    string
	Masters   []string
}

// Subject is the object whose handlers decide the request.
func (r Request) Subject() string {
	switch r.Kind {
	case HandActivate:
		return r.HandObject
	case PositionalHandApply:
		return r.HandObject
	default:
		return r.Target
	}
}
