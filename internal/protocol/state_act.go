package protocol

// ACT (client -> server)
type ActMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	PlayerID        string        `json:"player_id"`
	Controls        []ControlReq  `json:"controls,omitempty"`
	Interactions    []InteractReq `json:"interactions,omitempty"`
}

// Control types.
const (
	ControlMove     = "MOVE"
	ControlIntent   = "INTENT"
	ControlPickup   = "PICKUP"
	ControlDrop     = "DROP"
	ControlSwapHand = "SWAP_HAND"
	ControlCancel   = "CANCEL"
)

type ControlReq struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Dir    [2]int `json:"dir,omitempty"`
	Intent string `json:"intent,omitempty"`
	Target string `json:"target,omitempty"`
}

// InteractReq is an interaction aimed at an object. The hand object and intent are taken from
// the player's server-side state, never from the client.
type InteractReq struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Target    string   `json:"target,omitempty"`
	TargetPos *[2]int  `json:"target_pos,omitempty"`
	ClickType string   `json:"click_type,omitempty"`
	Option    string   `json:"option,omitempty"`
	Masters   []string `json:"masters,omitempty"`
}

// STATE (server -> client)
type StateMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	PlayerID        string      `json:"player_id"`
	Self            SelfObs     `json:"self"`
	Objects         []ObjectObs `json:"objects"`
	Players         []PlayerObs `json:"players"`
	Events          []Event     `json:"events"`
}

type SelfObs struct {
	Pos        [2]int            `json:"pos"`
	Intent     string            `json:"intent"`
	ActiveHand string            `json:"active_hand"`
	Slots      map[string]string `json:"slots"`
	Progress   *ProgressObs      `json:"progress,omitempty"`
}

type ProgressObs struct {
	Kind           string `json:"kind"`
	Target         string `json:"target,omitempty"`
	RemainingTicks int    `json:"remaining_ticks"`
}

type ObjectObs struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Name     string   `json:"name"`
	Pos      [2]int   `json:"pos"`
	Holder   string   `json:"holder,omitempty"`
	Slot     string   `json:"slot,omitempty"`
	State    string   `json:"state,omitempty"`
	Sprite   int      `json:"sprite,omitempty"`
	Scale    float64  `json:"scale"`
	HoverTip string   `json:"hover_tip,omitempty"`
	Hints    []string `json:"hints,omitempty"`
	Options  []string `json:"options,omitempty"`
}

type PlayerObs struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Pos  [2]int `json:"pos"`
}
