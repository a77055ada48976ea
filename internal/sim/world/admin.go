package world

import (
	"context"
	"errors"
)

// AdminState is a point-in-time summary served to operators.
type AdminState struct {
	Tick     uint64          `json:"tick"`
	Digest   string          `json:"digest"`
	Switches []SwitchSummary `json:"switches"`
	Snapshot string          `json:"snapshot,omitempty"`
}

type SwitchSummary struct {
	ID       string   `json:"id"`
	State    string   `json:"state"`
	PrevMove string   `json:"prev_move"`
	Rate     float64  `json:"rate"`
	Belts    []string `json:"belts"`
}

type adminReq struct {
	Snapshot bool
	Resp     chan adminResp
}

type adminResp struct {
	State AdminState
	Err   string
}

// RequestState asks the world loop goroutine for a state summary, optionally enqueueing a
// snapshot. It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestState(ctx context.Context, snapshot bool) (AdminState, error) {
	if w == nil || w.admin == nil {
		return AdminState{}, errors.New("admin state not available")
	}
	resp := make(chan adminResp, 1)
	select {
	case w.admin <- adminReq{Snapshot: snapshot, Resp: resp}:
	case <-ctx.Done():
		return AdminState{}, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.State, errors.New(r.Err)
		}
		return r.State, nil
	case <-ctx.Done():
		return AdminState{}, ctx.Err()
	}
}

func (w *World) handleAdminRequests(reqs []adminReq) {
	if len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	tick := uint64(0)
	if cur > 0 {
		tick = cur - 1
	}
	st := w.adminState(tick)

	snapErr := ""
	snapQueued := false
	for _, r := range reqs {
		resp := adminResp{State: st}
		if r.Snapshot {
			if !snapQueued && snapErr == "" {
				snapErr = w.enqueueSnapshot(tick)
				snapQueued = snapErr == ""
			}
			resp.Err = snapErr
			if snapQueued {
				resp.State.Snapshot = "queued"
			}
		}
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}

func (w *World) enqueueSnapshot(tick uint64) string {
	if w.snapshotSink == nil {
		return "snapshot sink not configured"
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(tick):
		return ""
	default:
		return "snapshot sink backpressure"
	}
}

func (w *World) adminState(tick uint64) AdminState {
	st := AdminState{Tick: tick, Digest: w.stateDigest(tick), Switches: []SwitchSummary{}}
	for _, o := range w.sortedObjects() {
		if o.Switch == nil {
			continue
		}
		st.Switches = append(st.Switches, SwitchSummary{
			ID:       o.ID,
			State:    o.Switch.State().String(),
			PrevMove: o.Switch.PrevMoveState().String(),
			Rate:     o.Switch.Rate(),
			Belts:    o.Switch.ActuatorIDs(),
		})
	}
	return st
}
