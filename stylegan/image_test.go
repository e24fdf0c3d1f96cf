package stylegan

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRGBA_RangeMapping(t *testing.T) {
	// [-1,1] maps to [0,255]; out-of-range values clamp.
	data := []float32{
		-1, 1, // R plane
		0, 2, // G plane
		1, -3, // B plane
	}
	img := TensorFrom(data, []int{1, 3, 1, 2})

	rgba, err := ToRGBA(img, 0)
	require.NoError(t, err)

	c0 := rgba.RGBAAt(0, 0)
	assert.Equal(t, uint8(0), c0.R)
	assert.Equal(t, uint8(127), c0.G)
	assert.Equal(t, uint8(255), c0.B)
	assert.Equal(t, uint8(255), c0.A)

	c1 := rgba.RGBAAt(1, 0)
	assert.Equal(t, uint8(255), c1.R)
	assert.Equal(t, uint8(255), c1.G)
	assert.Equal(t, uint8(0), c1.B)
}

func TestToRGBA_Errors(t *testing.T) {
	_, err := ToRGBA(NewTensor(1, 4, 2, 2), 0)
	assert.Error(t, err, "channel count must be 3")

	_, err = ToRGBA(NewTensor(1, 3, 2, 2), 1)
	assert.Error(t, err, "sample index out of range")

	_, err = ToRGBA(NewTensor(3, 2, 2), 0)
	assert.Error(t, err, "rank must be 4")
}

func TestSavePNG_WritesDecodableFile(t *testing.T) {
	img := NewTensor(2, 3, 4, 4)
	for i := range img.Data {
		img.Data[i] = float32(i%7)/3.5 - 1
	}
	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, SavePNG(img, 1, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Bounds().Dx())
	assert.Equal(t, 4, decoded.Bounds().Dy())
}
