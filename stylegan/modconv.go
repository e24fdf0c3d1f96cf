package stylegan

import (
	"fmt"
	"math"
	"math/rand"
)

const demodEps = 1e-8

// ModulatedConv2D is the core StyleGAN2 primitive: a convolution whose
// kernel is scaled per sample and per input channel by a style-derived
// modulation vector, optionally demodulated back to unit output variance,
// optionally fused with a stride-2 transposed upsampling.
//
// The effective kernel differs per batch element, so the convolution runs
// as a grouped convolution with batch-size groups.
type ModulatedConv2D struct {
	isUp    bool
	doDemod bool
	inCh    int
	fmaps   int
	kernel  int

	Weight *Tensor // [fmaps, inCh, k, k], unit-variance
	coef   float32 // gain / sqrt(inCh*k*k) * lrmul

	// Style affine w → s. Bias starts at 1 so modulation is the identity
	// at initialization; a zero start would silence every channel.
	ModWeight *Dense
	ModBias   *Tensor // [inCh], ones-initialized
}

func NewModulatedConv2D(rng *rand.Rand, isUp, doDemod bool, wDim, inCh, fmaps, kernel int, gain, lrmul float32) *ModulatedConv2D {
	fanIn := inCh * kernel * kernel
	c := &ModulatedConv2D{
		isUp:      isUp,
		doDemod:   doDemod,
		inCh:      inCh,
		fmaps:     fmaps,
		kernel:    kernel,
		Weight:    randNormal(rng, fmaps, inCh, kernel, kernel),
		coef:      gain / float32(math.Sqrt(float64(fanIn))) * lrmul,
		ModWeight: NewDense(rng, wDim, inCh, 1.0, 1.0),
		ModBias:   NewTensor(inCh),
	}
	for i := range c.ModBias.Data {
		c.ModBias.Data[i] = 1.0
	}
	return c
}

// Forward applies the modulated convolution.
// x: [B, inCh, H, W], w: [B, wDim] → [B, fmaps, H, W] (or [B, fmaps, 2H, 2W] when upsampling).
func (c *ModulatedConv2D) Forward(x, w *Tensor) (*Tensor, error) {
	if err := checkRank("conv input", x, 4); err != nil {
		return nil, err
	}
	if err := checkRank("style code", w, 2); err != nil {
		return nil, err
	}
	if x.Shape[1] != c.inCh {
		return nil, fmt.Errorf("conv input has %d channels, layer expects %d", x.Shape[1], c.inCh)
	}
	if x.Shape[0] != w.Shape[0] {
		return nil, fmt.Errorf("batch mismatch: feature map %d vs style code %d", x.Shape[0], w.Shape[0])
	}

	// Per-sample modulation vector s, ~1 at initialization.
	s, err := c.ModWeight.Forward(w)
	if err != nil {
		return nil, fmt.Errorf("style affine: %w", err)
	}
	for b := 0; b < s.Shape[0]; b++ {
		for i := 0; i < c.inCh; i++ {
			s.Data[b*c.inCh+i] += c.ModBias.Data[i]
		}
	}

	B := x.Shape[0]
	H := x.Shape[2]
	W := x.Shape[3]
	outH, outW := H, W
	if c.isUp {
		outH, outW = 2*H, 2*W
	}
	out := NewTensor(B, c.fmaps, outH, outW)

	k := c.kernel
	ksz := c.inCh * k * k
	wmod := make([]float32, c.fmaps*ksz)
	for b := 0; b < B; b++ {
		// w_mod[o,i,kh,kw] = coef * weight[o,i,kh,kw] * s[b,i]
		for o := 0; o < c.fmaps; o++ {
			for i := 0; i < c.inCh; i++ {
				sv := s.Data[b*c.inCh+i] * c.coef
				off := (o*c.inCh + i) * k * k
				for j := 0; j < k*k; j++ {
					wmod[off+j] = c.Weight.Data[off+j] * sv
				}
			}
		}
		// Demodulate: rescale each output channel to unit norm, restoring
		// unit output variance despite the per-sample modulation.
		if c.doDemod {
			for o := 0; o < c.fmaps; o++ {
				sum := float32(0)
				off := o * ksz
				for j := 0; j < ksz; j++ {
					sum += wmod[off+j] * wmod[off+j]
				}
				d := float32(1.0 / math.Sqrt(float64(sum)+demodEps))
				for j := 0; j < ksz; j++ {
					wmod[off+j] *= d
				}
			}
		}

		xoff := b * c.inCh * H * W
		ooff := b * c.fmaps * outH * outW
		if c.isUp {
			c.convTransposeSample(x.Data[xoff:xoff+c.inCh*H*W], wmod, out.Data[ooff:ooff+c.fmaps*outH*outW], H, W)
		} else {
			c.convSample(x.Data[xoff:xoff+c.inCh*H*W], wmod, out.Data[ooff:ooff+c.fmaps*outH*outW], H, W)
		}
	}
	return out, nil
}

// convSample: plain same-padded convolution for one sample.
func (c *ModulatedConv2D) convSample(x, wmod, out []float32, H, W int) {
	k := c.kernel
	pad := k / 2
	for o := 0; o < c.fmaps; o++ {
		for oh := 0; oh < H; oh++ {
			for ow := 0; ow < W; ow++ {
				sum := float32(0)
				for i := 0; i < c.inCh; i++ {
					for kh := 0; kh < k; kh++ {
						ih := oh - pad + kh
						if ih < 0 || ih >= H {
							continue
						}
						for kw := 0; kw < k; kw++ {
							iw := ow - pad + kw
							if iw < 0 || iw >= W {
								continue
							}
							sum += x[(i*H+ih)*W+iw] * wmod[((o*c.inCh+i)*k+kh)*k+kw]
						}
					}
				}
				out[(o*H+oh)*W+ow] = sum
			}
		}
	}
}

// convTransposeSample: fused stride-2 transposed convolution for one sample,
// doubling the spatial resolution in the same pass as the modulated filter.
// Scatter form: each input pixel contributes its kernel footprint around
// (2*ih, 2*iw). Doing the upsample inside the convolution avoids the
// aliasing of a separate nearest-upsample-then-convolve.
func (c *ModulatedConv2D) convTransposeSample(x, wmod, out []float32, H, W int) {
	k := c.kernel
	pad := k / 2
	outH := 2 * H
	outW := 2 * W
	for i := 0; i < c.inCh; i++ {
		for ih := 0; ih < H; ih++ {
			for iw := 0; iw < W; iw++ {
				xv := x[(i*H+ih)*W+iw]
				if xv == 0 {
					continue
				}
				for kh := 0; kh < k; kh++ {
					oh := 2*ih + kh - pad
					if oh < 0 || oh >= outH {
						continue
					}
					for kw := 0; kw < k; kw++ {
						ow := 2*iw + kw - pad
						if ow < 0 || ow >= outW {
							continue
						}
						for o := 0; o < c.fmaps; o++ {
							out[(o*outH+oh)*outW+ow] += xv * wmod[((o*c.inCh+i)*k+kh)*k+kw]
						}
					}
				}
			}
		}
	}
}
