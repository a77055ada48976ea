package world

import "time"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players int `json:"players"`
	Clients int `json:"clients"`
	Objects int `json:"objects"`

	RunningSwitches int `json:"running_switches"`
	ArmedExplosives int `json:"armed_explosives"`
	ScheduledTasks  int `json:"scheduled_tasks"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox  int `json:"inbox"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Attach int `json:"attach"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) storeMetrics(nextTick uint64, took time.Duration) {
	running, armed := 0, 0
	for _, o := range w.objects {
		if o.Switch != nil && o.Switch.Rate() != 0 {
			running++
		}
		if o.Explosive != nil && o.Explosive.Armed {
			armed++
		}
	}
	w.metrics.Store(WorldMetrics{
		Tick:            nextTick,
		Players:         len(w.players),
		Clients:         len(w.clients),
		Objects:         len(w.objects),
		RunningSwitches: running,
		ArmedExplosives: armed,
		ScheduledTasks:  w.sched.Len(),
		QueueDepths: QueueDepths{
			Inbox:  len(w.inbox),
			Join:   len(w.join),
			Leave:  len(w.leave),
			Attach: len(w.attach),
		},
		StepMS: float64(took.Microseconds()) / 1000,
	})
}
