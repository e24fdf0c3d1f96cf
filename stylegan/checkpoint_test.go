package stylegan

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	cfg := testConfig()
	src, err := NewGenerator(cfg, 1)
	require.NoError(t, err)

	// Mutate state so the round trip carries more than the initialization.
	x := RandomOneHot(rand.New(rand.NewSource(1)), cfg.XDepth, 2)
	_, err = src.Forward(x, true)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gen.safetensors")
	require.NoError(t, src.SaveCheckpoint(path))

	dst, err := NewGenerator(cfg, 2)
	require.NoError(t, err)
	require.NoError(t, dst.LoadCheckpoint(path))

	srcParams := src.Params()
	for i, p := range dst.Params() {
		assert.Equal(t, srcParams[i].Tensor.Data, p.Tensor.Data, "%s", p.Name)
	}
	assert.Equal(t, src.WAvg.Data, dst.WAvg.Data, "w_avg persists with the weights")
}

func TestCheckpoint_RestoredGeneratorsAgree(t *testing.T) {
	cfg := testConfig()
	src, err := NewGenerator(cfg, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gen.safetensors")
	require.NoError(t, src.SaveCheckpoint(path))

	// Two fresh generators with the same seed and the same restored weights
	// must produce identical images.
	a, err := NewGenerator(cfg, 7)
	require.NoError(t, err)
	b, err := NewGenerator(cfg, 7)
	require.NoError(t, err)
	require.NoError(t, a.LoadCheckpoint(path))
	require.NoError(t, b.LoadCheckpoint(path))

	x := RandomOneHot(rand.New(rand.NewSource(5)), cfg.XDepth, 2)
	outA, err := a.Forward(x, false)
	require.NoError(t, err)
	outB, err := b.Forward(x, false)
	require.NoError(t, err)
	assert.Equal(t, outA.Data, outB.Data)
}

func TestCheckpoint_ConfigMismatchFails(t *testing.T) {
	src, err := NewGenerator(testConfig(), 1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "gen.safetensors")
	require.NoError(t, src.SaveCheckpoint(path))

	cfg := testConfig()
	cfg.Featuremaps = []int{8, 4}
	shapeMismatch, err := NewGenerator(cfg, 2)
	require.NoError(t, err)
	assert.Error(t, shapeMismatch.LoadCheckpoint(path))

	cfg = testConfig()
	cfg.NMapping = 3
	missing, err := NewGenerator(cfg, 2)
	require.NoError(t, err)
	assert.Error(t, missing.LoadCheckpoint(path))
}

func TestCheckpoint_CorruptFile(t *testing.T) {
	gen, err := NewGenerator(testConfig(), 1)
	require.NoError(t, err)

	dir := t.TempDir()
	assert.Error(t, gen.LoadCheckpoint(filepath.Join(dir, "missing.safetensors")))

	short := filepath.Join(dir, "short.safetensors")
	require.NoError(t, os.WriteFile(short, []byte{1, 2, 3}, 0o644))
	assert.Error(t, gen.LoadCheckpoint(short))

	lying := filepath.Join(dir, "lying.safetensors")
	require.NoError(t, os.WriteFile(lying, []byte{255, 255, 255, 255, 255, 255, 255, 255, 0}, 0o644))
	assert.Error(t, gen.LoadCheckpoint(lying), "header length beyond file size")
}
