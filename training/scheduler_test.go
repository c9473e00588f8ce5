package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduceLROnPlateau(t *testing.T) {
	s := NewReduceLROnPlateau(0.01, 0.1, 1, 0, PlateauMin)

	steps := []struct {
		loss    float64
		lr      float64
		reduced bool
	}{
		{1.0, 0.01, false},
		{0.9, 0.01, false},
		{0.95, 0.01, false},
		{0.95, 0.001, true},
		{0.5, 0.001, false},
	}
	for i, step := range steps {
		lr, reduced := s.Step(step.loss)
		assert.InDelta(t, step.lr, lr, 1e-12, "step %d", i)
		assert.Equal(t, step.reduced, reduced, "step %d", i)
	}
	assert.InDelta(t, 0.001, s.LR(), 1e-12)
}

func TestReduceLROnPlateauMaxMode(t *testing.T) {
	s := NewReduceLROnPlateau(1, 0.5, 2, 0.5, PlateauMax)

	s.Step(50)
	_, reduced := s.Step(50.4)
	assert.False(t, reduced)
	_, reduced = s.Step(50.2)
	assert.False(t, reduced)
	lr, reduced := s.Step(50.5)
	assert.True(t, reduced, "gains below the threshold count as a plateau")
	assert.Equal(t, 0.5, lr)
}

func TestReduceLROnPlateauDefaults(t *testing.T) {
	s := NewReduceLROnPlateau(0.1, 2, 0, -1, "sideways")
	assert.Equal(t, 0.1, s.Factor)
	assert.Equal(t, 10, s.Patience)
	assert.Equal(t, 1e-4, s.Threshold)
	assert.Equal(t, PlateauMin, s.Mode)
}

func TestBestTracker(t *testing.T) {
	b := NewBestTracker(0)
	assert.False(t, b.Observe(0), "a fresh run needs a positive Prec@1")
	assert.True(t, b.Observe(41.2))
	assert.False(t, b.Observe(41.2))
	assert.False(t, b.Observe(39))
	assert.True(t, b.Observe(55))
	assert.Equal(t, 55.0, b.Best())

	resumed := NewBestTracker(60)
	assert.False(t, resumed.Observe(55))
}
