package training

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAverageMeter(t *testing.T) {
	t.Run("SingleUpdate", func(t *testing.T) {
		m := NewAverageMeter()
		m.Update(2.5, 1)
		assert.Equal(t, 2.5, m.Val)
		assert.Equal(t, 2.5, m.Avg)
		assert.Equal(t, 1.0, m.Count)
	})

	t.Run("TwoUpdates", func(t *testing.T) {
		m := NewAverageMeter()
		m.Update(1.0, 1)
		m.Update(4.0, 1)
		assert.Equal(t, 4.0, m.Val)
		assert.Equal(t, 5.0, m.Sum)
		assert.InDelta(t, 2.5, m.Avg, 1e-12)
	})

	t.Run("Weighted", func(t *testing.T) {
		m := NewAverageMeter()
		m.Update(1.0, 3)
		m.Update(5.0, 1)
		assert.InDelta(t, 2.0, m.Avg, 1e-12)
		assert.Equal(t, 4.0, m.Count)
	})

	t.Run("Reset", func(t *testing.T) {
		m := NewAverageMeter()
		m.Update(3, 2)
		m.Reset()
		assert.Equal(t, AverageMeter{}, *m)

		m.Update(7, 1)
		assert.Equal(t, 7.0, m.Avg)
	})

	t.Run("ZeroWeightOnEmpty", func(t *testing.T) {
		m := NewAverageMeter()
		m.Update(1, 0)
		assert.True(t, math.IsNaN(m.Avg))
	})
}
