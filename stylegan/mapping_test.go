package stylegan

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeRMS_UnitRMS(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		dim := rapid.IntRange(1, 256).Draw(t, "dim")
		x := NewTensor(1, dim)
		for i := range x.Data {
			x.Data[i] = float32(rapid.Float64Range(-100, 100).Draw(t, "v"))
		}
		// Guarantee a nonzero vector; zero input stays zero under the eps guard.
		x.Data[rapid.IntRange(0, dim-1).Draw(t, "hot")] = float32(rapid.Float64Range(1, 10).Draw(t, "hotv"))

		out := normalizeRMS(x)
		rms := 0.0
		for _, v := range out.Data {
			rms += float64(v) * float64(v)
		}
		rms = math.Sqrt(rms / float64(dim))
		if math.Abs(rms-1.0) > 1e-3 {
			t.Fatalf("rms = %g, want 1", rms)
		}
	})
}

func TestMapping_BroadcastRowsIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m := NewMapping(rng, 10, 16, 3, 6)

	x := RandomOneHot(rng, []int{4, 6}, 3)
	wb, err := m.Forward(x)
	require.NoError(t, err)
	require.Equal(t, []int{3, 6, 16}, wb.Shape)

	// Before mixing and truncation every modulation site sees the same code.
	for b := 0; b < 3; b++ {
		row0 := wb.Data[(b*6)*16 : (b*6+1)*16]
		for i := 1; i < 6; i++ {
			assert.Equal(t, row0, wb.Data[(b*6+i)*16:(b*6+i+1)*16], "row %d", i)
		}
	}
}

func TestMapping_RejectsWrongWidth(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m := NewMapping(rng, 10, 16, 3, 6)

	_, err := m.Forward(NewTensor(1, 11))
	assert.Error(t, err)

	_, err = m.Forward(NewTensor(10))
	assert.Error(t, err)
}

func TestRandomOneHot_ValidBlocks(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	depths := []int{4, 6, 2}
	x := RandomOneHot(rng, depths, 8)
	require.Equal(t, []int{8, 12}, x.Shape)

	for b := 0; b < 8; b++ {
		off := 0
		for _, d := range depths {
			sum := float32(0)
			for i := 0; i < d; i++ {
				v := x.Data[b*12+off+i]
				assert.True(t, v == 0 || v == 1)
				sum += v
			}
			assert.Equal(t, float32(1), sum, "each block is one-hot")
			off += d
		}
	}
}
