package stylegan

import (
	"fmt"
	"math/rand"
)

// Generator is the full conditional StyleGAN2 forward graph: mapping network,
// synthesis ladder, and the statistics maintained alongside them (moving
// average of the mean latent, EMA of weights against a paired network).
//
// All randomness — noise injection, style-mixing draws — comes from the
// generator's own rand.Rand, so runs are reproducible per seed. The mutable
// state (WAvg, weights) is touched synchronously inside a call; concurrent
// forwards against one Generator are not supported.
type Generator struct {
	cfg        Config
	nBroadcast int

	Mapping   *Mapping
	Synthesis *Synthesis

	// Moving average of the batch-mean style code. Zero at construction,
	// written only by training-mode forwards, read only by truncation.
	WAvg *Tensor // [wDim]

	truncationCoefs []float32
	rng             *rand.Rand

	params []Param
	byName map[string]Param
}

// NewGenerator builds a generator from a validated config. The seed controls
// weight initialization and every later stochastic draw.
func NewGenerator(cfg Config, seed int64) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generator config: %w", err)
	}
	rng := rand.New(rand.NewSource(seed))
	g := &Generator{
		cfg:        cfg,
		nBroadcast: cfg.NBroadcast(),
		Mapping:    NewMapping(rng, cfg.XDim, cfg.WDim, cfg.NMapping, cfg.NBroadcast()),
		Synthesis:  NewSynthesis(rng, cfg.WDim, cfg.Resolutions, cfg.Featuremaps),
		WAvg:       NewTensor(cfg.WDim),
		rng:        rng,
	}

	// Per-row truncation coefficients: psi below the cutoff, 1 above it;
	// psi everywhere when no cutoff is set.
	g.truncationCoefs = make([]float32, g.nBroadcast)
	for i := range g.truncationCoefs {
		if cfg.TruncationCutoff == nil || i < *cfg.TruncationCutoff {
			g.truncationCoefs[i] = cfg.TruncationPsi
		} else {
			g.truncationCoefs[i] = 1.0
		}
	}

	g.params = g.Mapping.params("g_mapping")
	g.params = append(g.params, g.Synthesis.params("g_synthesis")...)
	g.params = append(g.params, Param{Name: "w_avg", Tensor: g.WAvg, Trainable: false})
	g.byName = make(map[string]Param, len(g.params))
	for _, p := range g.params {
		if _, dup := g.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name %q", p.Name)
		}
		g.byName[p.Name] = p
	}
	return g, nil
}

// Config returns the construction parameters.
func (g *Generator) Config() Config { return g.cfg }

// Params returns the named parameter surface in construction order,
// including w_avg and the const seed.
func (g *Generator) Params() []Param {
	return append([]Param{}, g.params...)
}

// Forward maps a one-hot conditioning batch [B, x_dim] to an image tensor
// [B, 3, finalRes, finalRes].
//
// Training mode updates the w_avg moving average and applies style-mixing
// regularization; inference mode applies the truncation trick instead and
// never mutates state.
func (g *Generator) Forward(x *Tensor, training bool) (*Tensor, error) {
	wb, err := g.Mapping.Forward(x)
	if err != nil {
		return nil, err
	}

	if training {
		g.updateWAvg(wb)
		if wb, err = g.styleMixing(x.Shape[0], wb); err != nil {
			return nil, err
		}
	} else {
		wb = g.truncationTrick(wb)
	}

	return g.Synthesis.Forward(wb, g.rng)
}

// updateWAvg folds the batch mean of the unmixed first style row into the
// moving average: w_avg ← lerp(batchMean, w_avg, decay). Decay near 1 keeps
// the average moving slowly.
func (g *Generator) updateWAvg(wb *Tensor) {
	batch := wb.Shape[0]
	n := wb.Shape[1]
	dim := wb.Shape[2]
	mean := make([]float32, dim)
	for b := 0; b < batch; b++ {
		row := wb.Data[(b*n)*dim : (b*n+1)*dim]
		for d := 0; d < dim; d++ {
			mean[d] += row[d]
		}
	}
	inv := 1.0 / float32(batch)
	for d := 0; d < dim; d++ {
		mean[d] *= inv
	}
	lerpInto(g.WAvg.Data, mean, g.WAvg.Data, g.cfg.WEmaDecay)
}

// styleMixing draws a second conditioning batch from the per-field
// categorical distributions, maps it, and splices the two broadcast tensors
// at a random cutoff row: rows below the cutoff keep the first latent, rows
// at or above it take the second. With probability 1-p the cutoff is
// nBroadcast and nothing mixes.
func (g *Generator) styleMixing(batch int, wb1 *Tensor) (*Tensor, error) {
	x2 := RandomOneHot(g.rng, g.cfg.XDepth, batch)
	wb2, err := g.Mapping.Forward(x2)
	if err != nil {
		return nil, fmt.Errorf("mixing latent: %w", err)
	}

	cutoff := g.nBroadcast
	if g.rng.Float32() < g.cfg.StyleMixingProb {
		cutoff = 1 + g.rng.Intn(g.nBroadcast-1)
	}
	return mixBroadcast(wb1, wb2, cutoff), nil
}

// mixBroadcast takes rows [0,cutoff) from wb1 and [cutoff,n) from wb2.
func mixBroadcast(wb1, wb2 *Tensor, cutoff int) *Tensor {
	out := wb1.Clone()
	n := wb1.Shape[1]
	dim := wb1.Shape[2]
	for b := 0; b < wb1.Shape[0]; b++ {
		for i := cutoff; i < n; i++ {
			off := (b*n + i) * dim
			copy(out.Data[off:off+dim], wb2.Data[off:off+dim])
		}
	}
	return out
}

// truncationTrick pulls style rows toward the average latent:
// w' = w_avg + coef[i]*(w - w_avg). Early rows trade diversity for
// stability; rows past the cutoff keep coef 1 and stay untouched.
func (g *Generator) truncationTrick(wb *Tensor) *Tensor {
	out := NewTensor(wb.Shape...)
	batch := wb.Shape[0]
	n := wb.Shape[1]
	dim := wb.Shape[2]
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			coef := g.truncationCoefs[i]
			off := (b*n + i) * dim
			for d := 0; d < dim; d++ {
				out.Data[off+d] = g.WAvg.Data[d] + coef*(wb.Data[off+d]-g.WAvg.Data[d])
			}
		}
	}
	return out
}

// SetAsMovingAverageOf lerps every parameter toward the identically-named
// parameter of src: p ← lerp(src, p, beta) for trainable parameters and
// beta_nontrainable for the rest. The correspondence is total: a parameter
// missing from src, or matched with a different shape, is an error.
func (g *Generator) SetAsMovingAverageOf(src *Generator, beta, betaNontrainable float32) error {
	for _, p := range g.params {
		sp, ok := src.byName[p.Name]
		if !ok {
			return fmt.Errorf("source network has no parameter %q", p.Name)
		}
		if !sameShape(p.Tensor.Shape, sp.Tensor.Shape) {
			return fmt.Errorf("parameter %q shape %v does not match source %v", p.Name, p.Tensor.Shape, sp.Tensor.Shape)
		}
		t := beta
		if !p.Trainable {
			t = betaNontrainable
		}
		lerpInto(p.Tensor.Data, sp.Tensor.Data, p.Tensor.Data, t)
	}
	return nil
}

// RandomOneHot draws one uniform category per field and concatenates the
// per-field one-hot blocks into a [batch, sum(depths)] tensor.
func RandomOneHot(rng *rand.Rand, depths []int, batch int) *Tensor {
	total := 0
	for _, d := range depths {
		total += d
	}
	out := NewTensor(batch, total)
	for b := 0; b < batch; b++ {
		off := 0
		for _, d := range depths {
			out.Data[b*total+off+rng.Intn(d)] = 1.0
			off += d
		}
	}
	return out
}
