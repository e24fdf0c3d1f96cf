package stylegan

import (
	"fmt"
	"math/rand"
)

// BaseResolution is the fixed resolution of the learned constant block.
const BaseResolution = 4

// ToRGB projects a feature map to a 3-channel image (1x1 modulated conv,
// no demodulation) and adds it onto the running image accumulator. This is
// the skip path that carries low-frequency content from every resolution
// straight to the output.
type ToRGB struct {
	Conv *ModulatedConv2D
	Bias *Bias
}

func NewToRGB(rng *rand.Rand, wDim, inCh int) *ToRGB {
	return &ToRGB{
		Conv: NewModulatedConv2D(rng, false, false, wDim, inCh, 3, 1, 1.0, 1.0),
		Bias: NewBias(3, 1.0),
	}
}

// Forward projects x with style w and accumulates onto y (nil y = identity).
func (r *ToRGB) Forward(x, y, w *Tensor) (*Tensor, error) {
	t, err := r.Conv.Forward(x, w)
	if err != nil {
		return nil, err
	}
	if t, err = r.Bias.Forward(t); err != nil {
		return nil, err
	}
	if y == nil {
		return t, nil
	}
	if !sameShape(y.Shape, t.Shape) {
		return nil, fmt.Errorf("image accumulator shape %v does not match projection %v", y.Shape, t.Shape)
	}
	out := NewTensor(t.Shape...)
	for i := range out.Data {
		out.Data[i] = y.Data[i] + t.Data[i]
	}
	return out, nil
}

// SynthesisConstBlock starts the ladder: a learned constant tensor tiled
// across the batch, then one modulated conv + noise + bias + activation.
type SynthesisConstBlock struct {
	fmaps int
	Const *Tensor // [1, fmaps, 4, 4]
	Conv  *ModulatedConv2D
	Noise *Noise
	Bias  *Bias
}

func NewSynthesisConstBlock(rng *rand.Rand, wDim, fmaps int) *SynthesisConstBlock {
	return &SynthesisConstBlock{
		fmaps: fmaps,
		Const: randNormal(rng, 1, fmaps, BaseResolution, BaseResolution),
		Conv:  NewModulatedConv2D(rng, false, true, wDim, fmaps, fmaps, 3, 1.0, 1.0),
		Noise: NewNoise(fmaps),
		Bias:  NewBias(fmaps, 1.0),
	}
}

func (s *SynthesisConstBlock) Forward(w0 *Tensor, rng *rand.Rand) (*Tensor, error) {
	batch := w0.Shape[0]

	// One learned seed shared by every sample.
	x := NewTensor(batch, s.fmaps, BaseResolution, BaseResolution)
	per := s.fmaps * BaseResolution * BaseResolution
	for b := 0; b < batch; b++ {
		copy(x.Data[b*per:(b+1)*per], s.Const.Data)
	}

	x, err := s.Conv.Forward(x, w0)
	if err != nil {
		return nil, err
	}
	if x, err = s.Noise.Forward(x, rng); err != nil {
		return nil, err
	}
	if x, err = s.Bias.Forward(x); err != nil {
		return nil, err
	}
	return LeakyReLU(x), nil
}

// SynthesisBlock doubles the resolution: an upsampling modulated conv
// followed by a plain one, each with noise + bias + activation.
type SynthesisBlock struct {
	Conv0  *ModulatedConv2D
	Noise0 *Noise
	Bias0  *Bias

	Conv1  *ModulatedConv2D
	Noise1 *Noise
	Bias1  *Bias
}

func NewSynthesisBlock(rng *rand.Rand, wDim, inCh, fmaps int) *SynthesisBlock {
	return &SynthesisBlock{
		Conv0:  NewModulatedConv2D(rng, true, true, wDim, inCh, fmaps, 3, 1.0, 1.0),
		Noise0: NewNoise(fmaps),
		Bias0:  NewBias(fmaps, 1.0),
		Conv1:  NewModulatedConv2D(rng, false, true, wDim, fmaps, fmaps, 3, 1.0, 1.0),
		Noise1: NewNoise(fmaps),
		Bias1:  NewBias(fmaps, 1.0),
	}
}

func (s *SynthesisBlock) Forward(x, w0, w1 *Tensor, rng *rand.Rand) (*Tensor, error) {
	x, err := s.Conv0.Forward(x, w0)
	if err != nil {
		return nil, err
	}
	if x, err = s.Noise0.Forward(x, rng); err != nil {
		return nil, err
	}
	if x, err = s.Bias0.Forward(x); err != nil {
		return nil, err
	}
	x = LeakyReLU(x)

	if x, err = s.Conv1.Forward(x, w1); err != nil {
		return nil, err
	}
	if x, err = s.Noise1.Forward(x, rng); err != nil {
		return nil, err
	}
	if x, err = s.Bias1.Forward(x); err != nil {
		return nil, err
	}
	return LeakyReLU(x), nil
}

// Synthesis runs the resolution ladder: const block + one block per further
// resolution, accumulating the image through per-resolution ToRGB skips.
type Synthesis struct {
	resolutions []int
	nBroadcast  int

	InitialBlock *SynthesisConstBlock
	InitialToRGB *ToRGB
	Blocks       []*SynthesisBlock
	ToRGBs       []*ToRGB
}

func NewSynthesis(rng *rand.Rand, wDim int, resolutions, featuremaps []int) *Synthesis {
	s := &Synthesis{
		resolutions:  append([]int{}, resolutions...),
		nBroadcast:   2 * len(resolutions),
		InitialBlock: NewSynthesisConstBlock(rng, wDim, featuremaps[0]),
		InitialToRGB: NewToRGB(rng, wDim, featuremaps[0]),
	}
	prev := featuremaps[0]
	for i := 1; i < len(resolutions); i++ {
		s.Blocks = append(s.Blocks, NewSynthesisBlock(rng, wDim, prev, featuremaps[i]))
		s.ToRGBs = append(s.ToRGBs, NewToRGB(rng, wDim, featuremaps[i]))
		prev = featuremaps[i]
	}
	return s
}

// Forward: [B, nBroadcast, wDim] → [B, 3, finalRes, finalRes].
//
// Style-row wiring: the const block and its ToRGB consume rows 0 and 1;
// each further resolution consumes rows i, i+1 (convs) and i+2 (ToRGB) with
// the cursor advancing by 2, so the ToRGB row overlaps the next block's
// first row exactly as in the reference ladder.
func (s *Synthesis) Forward(wb *Tensor, rng *rand.Rand) (*Tensor, error) {
	if err := checkRank("broadcast styles", wb, 3); err != nil {
		return nil, err
	}
	if wb.Shape[1] != s.nBroadcast {
		return nil, fmt.Errorf("broadcast styles have %d rows, synthesis expects %d", wb.Shape[1], s.nBroadcast)
	}

	x, err := s.InitialBlock.Forward(styleRow(wb, 0), rng)
	if err != nil {
		return nil, fmt.Errorf("%dx%d const: %w", BaseResolution, BaseResolution, err)
	}
	y, err := s.InitialToRGB.Forward(x, nil, styleRow(wb, 1))
	if err != nil {
		return nil, fmt.Errorf("%dx%d ToRGB: %w", BaseResolution, BaseResolution, err)
	}

	cursor := 1
	for i, block := range s.Blocks {
		res := s.resolutions[i+1]
		x, err = block.Forward(x, styleRow(wb, cursor), styleRow(wb, cursor+1), rng)
		if err != nil {
			return nil, fmt.Errorf("%dx%d block: %w", res, res, err)
		}
		y, err = s.ToRGBs[i].Forward(x, Upsample2x(y), styleRow(wb, cursor+2))
		if err != nil {
			return nil, fmt.Errorf("%dx%d ToRGB: %w", res, res, err)
		}
		cursor += 2
	}

	// The cursor must land on the last broadcast row; anything else is a
	// wiring defect in the ladder construction.
	if cursor+1 != s.nBroadcast {
		return nil, fmt.Errorf("style cursor ended at %d for %d broadcast rows", cursor+1, s.nBroadcast)
	}
	return y, nil
}
