package stylegan

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// ToRGBA converts sample n of a [-1,1] image tensor [N,3,H,W] to an RGBA
// image.
func ToRGBA(t *Tensor, n int) (*image.RGBA, error) {
	if err := checkRank("image tensor", t, 4); err != nil {
		return nil, err
	}
	if t.Shape[1] != 3 {
		return nil, fmt.Errorf("image tensor has %d channels, expected 3", t.Shape[1])
	}
	if n < 0 || n >= t.Shape[0] {
		return nil, fmt.Errorf("sample index %d out of range [0,%d)", n, t.Shape[0])
	}
	H := t.Shape[2]
	W := t.Shape[3]
	base := n * 3 * H * W
	rgba := image.NewRGBA(image.Rect(0, 0, W, H))
	for y := 0; y < H; y++ {
		for x := 0; x < W; x++ {
			r := t.Data[base+0*H*W+y*W+x]
			g := t.Data[base+1*H*W+y*W+x]
			b := t.Data[base+2*H*W+y*W+x]
			rgba.Set(x, y, color.RGBA{
				R: clampByte((r + 1) / 2),
				G: clampByte((g + 1) / 2),
				B: clampByte((b + 1) / 2),
				A: 255,
			})
		}
	}
	return rgba, nil
}

// SavePNG writes sample n of a [-1,1] image tensor to a PNG file.
func SavePNG(t *Tensor, n int, path string) error {
	rgba, err := ToRGBA(t, n)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, rgba)
}

func clampByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255)
}
