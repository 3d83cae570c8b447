package metrics

import (
	"fmt"
	"time"
)

// Meter computes and stores the current value and running average of a series
// of observations. It is reset at measurement start and updated once per
// observation; it is not safe for concurrent use.
type Meter struct {
	name   string
	format string

	Val   float64
	Sum   float64
	Count int
	Avg   float64
}

// NewMeter returns a Meter that formats its values with the given Printf verb,
// e.g. "%.3f".
func NewMeter(name, format string) *Meter {
	if format == "" {
		format = "%f"
	}
	m := &Meter{name: name, format: format}
	m.Reset()
	return m
}

// Reset clears the accumulated observations.
func (m *Meter) Reset() {
	m.Val = 0
	m.Sum = 0
	m.Count = 0
	m.Avg = 0
}

// Update records an observation with weight n.
func (m *Meter) Update(val float64, n int) {
	m.Val = val
	m.Sum += val * float64(n)
	m.Count += n
	m.Avg = m.Sum / float64(m.Count)
}

// Time returns a stop function that records the elapsed seconds as a single
// observation when called.
func (m *Meter) Time() func() {
	start := time.Now()
	return func() {
		m.Update(time.Since(start).Seconds(), 1)
	}
}

// String renders "name current (average)".
func (m *Meter) String() string {
	return fmt.Sprintf("%s "+m.format+" ("+m.format+")", m.name, m.Val, m.Avg)
}
