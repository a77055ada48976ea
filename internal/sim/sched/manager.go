// Package sched runs keyed periodic callbacks on the world tick.
//
// It replaces per-object update loops: a component registers a callback while it needs
// refreshing (a running switch, an explosive following its target) and removes it when it
// goes idle. The world calls Run once per tick after applying actions.
package sched

import "sort"

type Func = func(nowTick uint64)

type entry struct {
	every   uint64
	nextDue uint64
	fn      Func
}

// Manager is not safe for concurrent use; it lives on the world loop goroutine.
type Manager struct {
	now     uint64
	entries map[string]*entry
}

func New() *Manager {
	return &Manager{entries: map[string]*entry{}}
}

// SetNow records the tick that subsequent Add calls are relative to.
func (m *Manager) SetNow(nowTick uint64) { m.now = nowTick }

func (m *Manager) Now() uint64 { return m.now }

// Add registers fn under key, replacing any previous registration for the same key.
// The first call happens everyTicks after the current tick.
func (m *Manager) Add(key string, everyTicks int, fn Func) {
	if key == "" || fn == nil {
		return
	}
	every := uint64(1)
	if everyTicks > 1 {
		every = uint64(everyTicks)
	}
	m.entries[key] = &entry{every: every, nextDue: m.now + every, fn: fn}
}

// AddAt is Add with an explicit first due tick, for timers restored from a snapshot.
// A zero or already passed firstDue behaves like Add.
func (m *Manager) AddAt(key string, everyTicks int, firstDue uint64, fn Func) {
	m.Add(key, everyTicks, fn)
	if e := m.entries[key]; e != nil && firstDue > 0 && firstDue >= m.now {
		e.nextDue = firstDue
	}
}

// NextDue reports the tick key fires next.
func (m *Manager) NextDue(key string) (uint64, bool) {
	e, ok := m.entries[key]
	if !ok {
		return 0, false
	}
	return e.nextDue, true
}

func (m *Manager) Remove(key string) { delete(m.entries, key) }

func (m *Manager) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

func (m *Manager) Len() int { return len(m.entries) }

// Keys returns registered keys in sorted order.
func (m *Manager) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run fires every due callback in key order. Callbacks may add or remove entries;
// an entry removed during the run does not fire later in the same run.
func (m *Manager) Run(nowTick uint64) int {
	m.now = nowTick
	if len(m.entries) == 0 {
		return 0
	}
	fired := 0
	for _, key := range m.Keys() {
		e := m.entries[key]
		if e == nil || e.nextDue > nowTick {
			continue
		}
		e.nextDue = nowTick + e.every
		e.fn(nowTick)
		fired++
	}
	return fired
}
