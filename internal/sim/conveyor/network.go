package conveyor

import "cargohold.ai/internal/sim/mathx"

// BeltLookup returns the belt at pos, or nil.
type BeltLookup func(pos mathx.Vec2i) *Belt

// NeighborSwitch finds the switch of the closest linked belt reachable from start through
// adjacent belts. The search visits at most maxNodes belts.
func NeighborSwitch(start mathx.Vec2i, lookup BeltLookup, maxNodes int) *Switch {
	if lookup == nil || maxNodes <= 0 {
		return nil
	}

	visited := map[mathx.Vec2i]bool{start: true}
	q := make([]mathx.Vec2i, 0, 4)
	for _, d := range mathx.CardinalDirs {
		p := start.Add(d)
		if lookup(p) == nil || visited[p] {
			continue
		}
		visited[p] = true
		q = append(q, p)
	}

	seen := 0
	for len(q) > 0 && seen < maxNodes {
		p := q[0]
		q = q[1:]
		seen++

		b := lookup(p)
		if b == nil {
			continue
		}
		if b.sw != nil {
			return b.sw
		}
		for _, d := range mathx.CardinalDirs {
			np := p.Add(d)
			if visited[np] || lookup(np) == nil {
				continue
			}
			visited[np] = true
			q = append(q, np)
		}
	}
	return nil
}
