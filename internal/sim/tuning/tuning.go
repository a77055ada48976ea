package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	InteractRange      int `yaml:"interact_range"`
	ChatRange          int `yaml:"chat_range"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	Conveyor  Conveyor  `yaml:"conveyor"`
	Switch    Switch    `yaml:"switch"`
	Wrapping  Wrapping  `yaml:"wrapping"`
	Explosive Explosive `yaml:"explosive"`
}

type Conveyor struct {
	BeltSpeed         float64 `yaml:"belt_speed"`
	RedriveEveryTicks int     `yaml:"redrive_every_ticks"`
	// NetworkMaxNodes caps the belt search used to auto-link a new belt.
	NetworkMaxNodes int `yaml:"network_max_nodes"`
}

type Switch struct {
	DeconstructProgressTicks int    `yaml:"deconstruct_progress_ticks"`
	DeconstructScrap         string `yaml:"deconstruct_scrap"`
	DeconstructScrapCount    int    `yaml:"deconstruct_scrap_count"`
}

type Wrapping struct {
	UnwrapProgressTicks int `yaml:"unwrap_progress_ticks"`
	// DefaultContents maps a package type name (BOX, TINY, ...) to the object kind spawned
	// when a package without stored content is opened.
	DefaultContents map[string]string `yaml:"default_contents"`
}

type Explosive struct {
	AttachProgressTicks int     `yaml:"attach_progress_ticks"`
	PollEveryTicks      int     `yaml:"poll_every_ticks"`
	ArmTimerTicks       int     `yaml:"arm_timer_ticks"`
	Strength            int     `yaml:"strength"`
	AttachedScale       float64 `yaml:"attached_scale"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         10,
		InteractRange:      1,
		ChatRange:          9,
		SnapshotEveryTicks: 3000,
		Conveyor: Conveyor{
			BeltSpeed:         0.5,
			RedriveEveryTicks: 5,
			NetworkMaxNodes:   256,
		},
		Switch: Switch{
			DeconstructProgressTicks: 20,
			DeconstructScrap:         "METAL",
			DeconstructScrapCount:    5,
		},
		Wrapping: Wrapping{
			UnwrapProgressTicks: 10,
			DefaultContents:     map[string]string{},
		},
		Explosive: Explosive{
			AttachProgressTicks: 30,
			PollEveryTicks:      1,
			ArmTimerTicks:       100,
			Strength:            150,
			AttachedScale:       0.6,
		},
	}
}

// Load reads a tuning file. Fields left at zero keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	var in Tuning
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.merge(in)
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case t.Conveyor.BeltSpeed < 0:
		return fmt.Errorf("conveyor.belt_speed must be >= 0")
	case t.Explosive.AttachedScale <= 0:
		return fmt.Errorf("explosive.attached_scale must be > 0")
	}
	return nil
}

func (t *Tuning) merge(in Tuning) {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setF := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	setStr(&t.ProtocolVersion, in.ProtocolVersion)
	setInt(&t.TickRateHz, in.TickRateHz)
	setInt(&t.InteractRange, in.InteractRange)
	setInt(&t.ChatRange, in.ChatRange)
	setInt(&t.SnapshotEveryTicks, in.SnapshotEveryTicks)

	setF(&t.Conveyor.BeltSpeed, in.Conveyor.BeltSpeed)
	setInt(&t.Conveyor.RedriveEveryTicks, in.Conveyor.RedriveEveryTicks)
	setInt(&t.Conveyor.NetworkMaxNodes, in.Conveyor.NetworkMaxNodes)

	setInt(&t.Switch.DeconstructProgressTicks, in.Switch.DeconstructProgressTicks)
	setStr(&t.Switch.DeconstructScrap, in.Switch.DeconstructScrap)
	setInt(&t.Switch.DeconstructScrapCount, in.Switch.DeconstructScrapCount)

	setInt(&t.Wrapping.UnwrapProgressTicks, in.Wrapping.UnwrapProgressTicks)
	for k, v := range in.Wrapping.DefaultContents {
		t.Wrapping.DefaultContents[k] = v
	}

	setInt(&t.Explosive.AttachProgressTicks, in.Explosive.AttachProgressTicks)
	setInt(&t.Explosive.PollEveryTicks, in.Explosive.PollEveryTicks)
	setInt(&t.Explosive.ArmTimerTicks, in.Explosive.ArmTimerTicks)
	setInt(&t.Explosive.Strength, in.Explosive.Strength)
	setF(&t.Explosive.AttachedScale, in.Explosive.AttachedScale)
}
