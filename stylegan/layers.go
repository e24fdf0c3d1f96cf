package stylegan

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	leakySlope = 0.2
	// Post-activation gain keeping activation variance stable across depth.
	actGain = 1.41421356237 // sqrt(2)
)

// Dense is a fully connected layer with equalized learning rate: the stored
// weight is unit-variance and the runtime coefficient gain/sqrt(fanIn)*lrmul
// is applied on every call. No bias — bias lives in its own layer.
type Dense struct {
	Weight *Tensor // [out, in]
	in     int
	out    int
	coef   float32
}

func NewDense(rng *rand.Rand, in, out int, gain, lrmul float32) *Dense {
	return &Dense{
		Weight: randNormal(rng, out, in),
		in:     in,
		out:    out,
		coef:   gain / float32(math.Sqrt(float64(in))) * lrmul,
	}
}

// Forward: y = x @ (coef*W)^T, x: [batch, in] → [batch, out].
func (d *Dense) Forward(x *Tensor) (*Tensor, error) {
	if err := checkRank("dense input", x, 2); err != nil {
		return nil, err
	}
	if x.Shape[1] != d.in {
		return nil, fmt.Errorf("dense input width %d, layer expects %d", x.Shape[1], d.in)
	}
	batch := x.Shape[0]
	out := NewTensor(batch, d.out)
	for b := 0; b < batch; b++ {
		for o := 0; o < d.out; o++ {
			sum := float32(0)
			for i := 0; i < d.in; i++ {
				sum += x.Data[b*d.in+i] * d.Weight.Data[o*d.in+i]
			}
			out.Data[b*d.out+o] = sum * d.coef
		}
	}
	return out, nil
}

// Bias adds a learned per-channel bias, scaled by lrmul at call time.
// Works on [batch, C] and [batch, C, H, W].
type Bias struct {
	B     *Tensor // [C], zero-initialized
	lrmul float32
}

func NewBias(channels int, lrmul float32) *Bias {
	return &Bias{B: NewTensor(channels), lrmul: lrmul}
}

func (l *Bias) Forward(x *Tensor) (*Tensor, error) {
	if x == nil || (len(x.Shape) != 2 && len(x.Shape) != 4) {
		return nil, fmt.Errorf("bias input must be 2D or 4D")
	}
	C := x.Shape[1]
	if C != len(l.B.Data) {
		return nil, fmt.Errorf("bias input has %d channels, layer expects %d", C, len(l.B.Data))
	}
	out := x.Clone()
	spatial := 1
	for _, s := range x.Shape[2:] {
		spatial *= s
	}
	batch := x.Shape[0]
	for b := 0; b < batch; b++ {
		for c := 0; c < C; c++ {
			bv := l.B.Data[c] * l.lrmul
			off := (b*C + c) * spatial
			for i := 0; i < spatial; i++ {
				out.Data[off+i] += bv
			}
		}
	}
	return out, nil
}

// LeakyReLU with slope 0.2, compensated by a sqrt(2) output gain.
func LeakyReLU(x *Tensor) *Tensor {
	out := NewTensor(x.Shape...)
	for i, v := range x.Data {
		if v < 0 {
			v *= leakySlope
		}
		out.Data[i] = v * actGain
	}
	return out
}

// Noise adds spatially-varying, channel-shared gaussian noise scaled by a
// learned per-channel strength. Strength starts at zero so the layer is the
// identity at initialization.
type Noise struct {
	Strength *Tensor // [C]
}

func NewNoise(channels int) *Noise {
	return &Noise{Strength: NewTensor(channels)}
}

func (n *Noise) Forward(x *Tensor, rng *rand.Rand) (*Tensor, error) {
	if err := checkRank("noise input", x, 4); err != nil {
		return nil, err
	}
	C := x.Shape[1]
	if C != len(n.Strength.Data) {
		return nil, fmt.Errorf("noise input has %d channels, layer expects %d", C, len(n.Strength.Data))
	}
	batch := x.Shape[0]
	H := x.Shape[2]
	W := x.Shape[3]
	out := x.Clone()
	noise := make([]float32, H*W)
	for b := 0; b < batch; b++ {
		for i := range noise {
			noise[i] = float32(rng.NormFloat64())
		}
		for c := 0; c < C; c++ {
			s := n.Strength.Data[c]
			if s == 0 {
				continue
			}
			off := (b*C + c) * H * W
			for i := 0; i < H*W; i++ {
				out.Data[off+i] += s * noise[i]
			}
		}
	}
	return out, nil
}
