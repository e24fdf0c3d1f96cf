package stylegan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesis_LadderShapes(t *testing.T) {
	cases := []struct {
		resolutions []int
		featuremaps []int
	}{
		{[]int{4}, []int{32}},
		{[]int{4, 8}, []int{32, 16}},
		{[]int{4, 8, 16}, []int{32, 16, 8}},
		{[]int{4, 8, 16, 32}, []int{32, 16, 8, 4}},
	}
	for _, tc := range cases {
		rng := rand.New(rand.NewSource(4))
		s := NewSynthesis(rng, 8, tc.resolutions, tc.featuremaps)
		require.Equal(t, 2*len(tc.resolutions), s.nBroadcast)

		wb := randNormal(rng, 2, s.nBroadcast, 8)
		out, err := s.Forward(wb, rng)
		require.NoError(t, err)

		final := tc.resolutions[len(tc.resolutions)-1]
		assert.Equal(t, []int{2, 3, final, final}, out.Shape, "ladder %v", tc.resolutions)
	}
}

func TestSynthesis_RejectsWrongRowCount(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	s := NewSynthesis(rng, 8, []int{4, 8}, []int{16, 8})

	_, err := s.Forward(randNormal(rng, 2, 3, 8), rng)
	assert.Error(t, err)
}

func TestToRGB_AccumulatesSkipImage(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	torgb := NewToRGB(rng, 8, 4)

	x := randNormal(rng, 1, 4, 4, 4)
	w := randNormal(rng, 1, 8)

	// nil accumulator: the projection alone.
	alone, err := torgb.Forward(x, nil, w)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 4, 4}, alone.Shape)

	y := randNormal(rng, 1, 3, 4, 4)
	acc, err := torgb.Forward(x, y, w)
	require.NoError(t, err)
	for i := range acc.Data {
		assert.InDelta(t, float64(y.Data[i]+alone.Data[i]), float64(acc.Data[i]), 1e-6)
	}

	_, err = torgb.Forward(x, randNormal(rng, 1, 3, 8, 8), w)
	assert.Error(t, err, "accumulator resolution must match the projection")
}

func TestSynthesisConstBlock_SharedSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	blk := NewSynthesisConstBlock(rng, 8, 16)

	// Identical style rows give identical outputs across the batch: every
	// sample starts from the same learned constant.
	w := NewTensor(2, 8)
	base := randNormal(rng, 1, 8)
	copy(w.Data[:8], base.Data)
	copy(w.Data[8:], base.Data)

	out, err := blk.Forward(w, rng)
	require.NoError(t, err)
	require.Equal(t, []int{2, 16, BaseResolution, BaseResolution}, out.Shape)

	// Noise strength starts at zero, so equal styles on the shared seed
	// must produce identical samples.
	per := 16 * BaseResolution * BaseResolution
	assert.Equal(t, out.Data[:per], out.Data[per:])
}
