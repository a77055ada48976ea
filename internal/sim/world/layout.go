package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cargohold.ai/internal/sim/cargo"
	"cargohold.ai/internal/sim/conveyor"
	"cargohold.ai/internal/sim/mathx"
)

// Layout is the mapped starting state of a world.
type Layout struct {
	Objects  []LayoutObject `yaml:"objects"`
	Belts    []LayoutBelt   `yaml:"belts"`
	Switches []LayoutSwitch `yaml:"switches"`
}

type LayoutObject struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
	Pos  [2]int `yaml:"pos"`

	// Wrapped packages.
	PackageType string `yaml:"package_type"`
	Size        string `yaml:"size"`
	Content     string `yaml:"content"`

	Count int `yaml:"count"`
}

type LayoutBelt struct {
	ID  string `yaml:"id"`
	Pos [2]int `yaml:"pos"`
	Dir [2]int `yaml:"dir"`
}

type LayoutSwitch struct {
	ID    string   `yaml:"id"`
	Pos   [2]int   `yaml:"pos"`
	Speed float64  `yaml:"speed"`
	State string   `yaml:"state"`
	Belts []string `yaml:"belts"`
}

func LoadLayout(path string) (Layout, error) {
	var l Layout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("layout.yaml: %w", err)
	}
	return l, nil
}

// ApplyLayout spawns the mapped objects. It must run before the world loop starts.
func (w *World) ApplyLayout(l Layout) error {
	seen := map[string]bool{}
	claim := func(id string) error {
		if id == "" {
			return nil
		}
		if seen[id] || w.objects[id] != nil {
			return fmt.Errorf("layout: duplicate id %q", id)
		}
		seen[id] = true
		return nil
	}

	for _, b := range l.Belts {
		if err := claim(b.ID); err != nil {
			return err
		}
		w.spawnBelt(b.ID, mathx.FromArray(b.Pos), mathx.FromArray(b.Dir))
	}

	for _, lo := range l.Objects {
		if lo.Kind == "" {
			return fmt.Errorf("layout: object %q has no kind", lo.ID)
		}
		if err := claim(lo.ID); err != nil {
			return err
		}
		if err := w.spawnMapped(lo); err != nil {
			return err
		}
	}

	for _, ls := range l.Switches {
		if err := claim(ls.ID); err != nil {
			return err
		}
		o := w.spawnSwitch(ls.ID, mathx.FromArray(ls.Pos), ls.Speed)
		belts := make([]conveyor.Actuator, 0, len(ls.Belts))
		for _, id := range ls.Belts {
			bo := w.objects[id]
			if bo == nil || bo.Belt == nil {
				return fmt.Errorf("layout: switch %q references unknown belt %q", ls.ID, id)
			}
			belts = append(belts, bo.Belt)
		}
		o.Switch.RegisterActuators(belts...)
		if ls.State != "" {
			st, err := conveyor.ParseSwitchState(ls.State)
			if err != nil {
				return fmt.Errorf("layout: switch %q: %w", ls.ID, err)
			}
			o.Switch.SetState(st)
		}
		for _, a := range belts {
			a.UpdateState()
		}
	}

	w.autoLinkBelts()
	return nil
}

func (w *World) spawnMapped(lo LayoutObject) error {
	pos := mathx.FromArray(lo.Pos)
	if lo.Kind == KindSwitch || lo.Kind == KindBelt {
		return fmt.Errorf("layout: %q belongs under switches/belts", lo.ID)
	}
	o := w.spawnObject(lo.ID, lo.Kind, pos)
	if lo.Name != "" {
		o.Name = lo.Name
	}
	if lo.Count > 0 {
		o.Count = lo.Count
	}
	if o.Package == nil {
		return nil
	}

	pt, err := cargo.ParsePackageType(lo.PackageType)
	if err != nil {
		return fmt.Errorf("layout: package %q: %w", o.ID, err)
	}
	size, err := cargo.ParseSize(lo.Size)
	if err != nil {
		return fmt.Errorf("layout: package %q: %w", o.ID, err)
	}
	o.Package.Type = pt
	o.Package.SetSize(size)
	o.Package.DefaultContent = w.cfg.Wrapping.DefaultContents[pt.String()]
	if lo.Content != "" {
		inner := w.spawnObject("", lo.Content, pos)
		inner.Visible = false
		o.Package.ContentID = inner.ID
	}
	o.Package.OnSpawn(true)
	return nil
}
