package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeterUpdate(t *testing.T) {
	m := NewMeter("loss", "%.2f")

	m.Update(2.0, 1)
	m.Update(4.0, 3)

	assert.Equal(t, 4.0, m.Val)
	assert.Equal(t, 14.0, m.Sum)
	assert.Equal(t, 4, m.Count)
	assert.InDelta(t, 3.5, m.Avg, 1e-9)
	assert.Equal(t, "loss 4.00 (3.50)", m.String())

	m.Reset()
	assert.Equal(t, 0, m.Count)
	assert.Equal(t, 0.0, m.Sum)
}
