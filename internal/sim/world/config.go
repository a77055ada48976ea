package world

import (
	"fmt"

	"cargohold.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID            string
	TickRateHz    int
	InteractRange int
	ChatRange     int

	// Operational parameters. These are included in snapshots for deterministic replay/resume.
	SnapshotEveryTicks int

	Conveyor  tuning.Conveyor
	Switch    tuning.Switch
	Wrapping  tuning.Wrapping
	Explosive tuning.Explosive
}

// ConfigFromTuning builds a world config from loaded tuning.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		InteractRange:      t.InteractRange,
		ChatRange:          t.ChatRange,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		Conveyor:           t.Conveyor,
		Switch:             t.Switch,
		Wrapping:           t.Wrapping,
		Explosive:          t.Explosive,
	}
}

func (c WorldConfig) validate() error {
	if c.TickRateHz <= 0 {
		return fmt.Errorf("world %q: tick rate must be > 0", c.ID)
	}
	if c.InteractRange < 0 || c.ChatRange < 0 {
		return fmt.Errorf("world %q: ranges must be >= 0", c.ID)
	}
	return nil
}
