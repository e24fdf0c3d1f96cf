package stylegan

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	// Dense embedding width for the one-hot conditioning vector.
	labelEmbedDim = 512
	normEps       = 1e-8
	// Mapping weights and biases train at a hundredth of the global rate.
	mappingLRMul = 0.01
)

// Mapping turns a one-hot conditioning vector into a broadcast style tensor:
// embed → unit-RMS normalize → n_mapping × (dense + bias + leaky) → tile to
// one style row per synthesis modulation site.
type Mapping struct {
	xDim       int
	wDim       int
	nMapping   int
	nBroadcast int

	Embedding *Dense
	Denses    []*Dense
	Biases    []*Bias
}

func NewMapping(rng *rand.Rand, xDim, wDim, nMapping, nBroadcast int) *Mapping {
	m := &Mapping{
		xDim:       xDim,
		wDim:       wDim,
		nMapping:   nMapping,
		nBroadcast: nBroadcast,
		Embedding:  NewDense(rng, xDim, labelEmbedDim, 1.0, 1.0),
	}
	in := labelEmbedDim
	for i := 0; i < nMapping; i++ {
		m.Denses = append(m.Denses, NewDense(rng, in, wDim, 1.0, mappingLRMul))
		m.Biases = append(m.Biases, NewBias(wDim, mappingLRMul))
		in = wDim
	}
	return m
}

// Forward: [B, xDim] → [B, nBroadcast, wDim]. Every broadcast row holds the
// same style code; mixing and truncation differentiate rows later.
func (m *Mapping) Forward(x *Tensor) (*Tensor, error) {
	if err := checkRank("conditioning", x, 2); err != nil {
		return nil, err
	}
	if x.Shape[1] != m.xDim {
		return nil, fmt.Errorf("conditioning width %d, mapping expects %d", x.Shape[1], m.xDim)
	}

	h, err := m.Embedding.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	h = normalizeRMS(h)

	for i := range m.Denses {
		if h, err = m.Denses[i].Forward(h); err != nil {
			return nil, fmt.Errorf("mapping dense %d: %w", i, err)
		}
		if h, err = m.Biases[i].Forward(h); err != nil {
			return nil, fmt.Errorf("mapping bias %d: %w", i, err)
		}
		h = LeakyReLU(h)
	}

	return broadcastStyles(h, m.nBroadcast), nil
}

// normalizeRMS scales each row to unit root-mean-square:
// x' = x / sqrt(mean(x^2) + eps). Keeps latent magnitudes from drifting.
func normalizeRMS(x *Tensor) *Tensor {
	batch := x.Shape[0]
	dim := x.Shape[1]
	out := NewTensor(batch, dim)
	for b := 0; b < batch; b++ {
		sum := float32(0)
		for i := 0; i < dim; i++ {
			v := x.Data[b*dim+i]
			sum += v * v
		}
		inv := float32(1.0 / math.Sqrt(float64(sum/float32(dim))+normEps))
		for i := 0; i < dim; i++ {
			out.Data[b*dim+i] = x.Data[b*dim+i] * inv
		}
	}
	return out
}

// broadcastStyles tiles [B, wDim] along a new axis to [B, n, wDim].
func broadcastStyles(w *Tensor, n int) *Tensor {
	batch := w.Shape[0]
	dim := w.Shape[1]
	out := NewTensor(batch, n, dim)
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			copy(out.Data[(b*n+i)*dim:(b*n+i+1)*dim], w.Data[b*dim:(b+1)*dim])
		}
	}
	return out
}

// styleRow extracts broadcast row i as a [B, wDim] tensor.
func styleRow(wb *Tensor, i int) *Tensor {
	batch := wb.Shape[0]
	n := wb.Shape[1]
	dim := wb.Shape[2]
	out := NewTensor(batch, dim)
	for b := 0; b < batch; b++ {
		copy(out.Data[b*dim:(b+1)*dim], wb.Data[(b*n+i)*dim:(b*n+i+1)*dim])
	}
	return out
}
