package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_FiresAtCadence(t *testing.T) {
	m := New()
	var fired []uint64
	m.Add("a", 3, func(now uint64) { fired = append(fired, now) })

	for tick := uint64(1); tick <= 10; tick++ {
		m.Run(tick)
	}
	assert.Equal(t, []uint64{3, 6, 9}, fired)
}

func TestManager_AddReplacesExisting(t *testing.T) {
	m := New()
	calls := map[string]int{}
	m.Add("k", 1, func(uint64) { calls["old"]++ })
	m.Add("k", 1, func(uint64) { calls["new"]++ })
	require.Equal(t, 1, m.Len())

	m.Run(1)
	assert.Equal(t, 0, calls["old"])
	assert.Equal(t, 1, calls["new"])
}

func TestManager_RemoveDuringRunSkipsLaterEntry(t *testing.T) {
	m := New()
	var order []string
	m.Add("a", 1, func(uint64) {
		order = append(order, "a")
		m.Remove("b")
	})
	m.Add("b", 1, func(uint64) { order = append(order, "b") })

	m.Run(1)
	assert.Equal(t, []string{"a"}, order)
	assert.False(t, m.Has("b"))
}

func TestManager_RelativeToNow(t *testing.T) {
	m := New()
	m.SetNow(100)
	n := 0
	m.Add("x", 5, func(uint64) { n++ })

	assert.Equal(t, 0, m.Run(104))
	assert.Equal(t, 1, m.Run(105))
	assert.Equal(t, 1, n)
}

func TestManager_ZeroIntervalMeansEveryTick(t *testing.T) {
	m := New()
	n := 0
	m.Add("x", 0, func(uint64) { n++ })
	m.Run(1)
	m.Run(2)
	assert.Equal(t, 2, n)
}

func TestManager_AddAtKeepsPhase(t *testing.T) {
	m := New()
	m.SetNow(10)
	var fired []uint64
	m.AddAt("k", 5, 12, func(now uint64) { fired = append(fired, now) })
	due, ok := m.NextDue("k")
	require.True(t, ok)
	assert.Equal(t, uint64(12), due)

	for tick := uint64(10); tick <= 22; tick++ {
		m.Run(tick)
	}
	assert.Equal(t, []uint64{12, 17, 22}, fired)

	m.AddAt("late", 5, 3, func(uint64) {})
	due, _ = m.NextDue("late")
	assert.Equal(t, uint64(27), due)

	_, ok = m.NextDue("missing")
	assert.False(t, ok)
}
