package stylegan

import (
	"fmt"
	"math/rand"
)

// Tensor is an n-dimensional float32 array in row-major (NCHW) layout.
type Tensor struct {
	Data  []float32
	Shape []int
}

func NewTensor(shape ...int) *Tensor {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return &Tensor{Data: make([]float32, size), Shape: shape}
}

func TensorFrom(data []float32, shape []int) *Tensor {
	return &Tensor{Data: data, Shape: shape}
}

func (t *Tensor) Numel() int {
	n := 1
	for _, s := range t.Shape {
		n *= s
	}
	return n
}

func (t *Tensor) Clone() *Tensor {
	d := make([]float32, len(t.Data))
	copy(d, t.Data)
	return &Tensor{Data: d, Shape: append([]int{}, t.Shape...)}
}

// sameShape reports whether two shapes are identical.
func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkRank fails with a descriptive error when a caller hands a tensor of
// the wrong rank; shape contracts are fatal, never silently coerced.
func checkRank(name string, t *Tensor, rank int) error {
	if t == nil {
		return fmt.Errorf("%s is nil", name)
	}
	if len(t.Shape) != rank {
		return fmt.Errorf("%s must be %dD, got shape %v", name, rank, t.Shape)
	}
	return nil
}

// randNormal fills a fresh tensor with unit-variance gaussian samples.
// Raw weights stay unit-variance; per-layer scaling happens at call time.
func randNormal(rng *rand.Rand, shape ...int) *Tensor {
	t := NewTensor(shape...)
	for i := range t.Data {
		t.Data[i] = float32(rng.NormFloat64())
	}
	return t
}

// Upsample2x: nearest-neighbor 2x upsampling for [N,C,H,W].
func Upsample2x(x *Tensor) *Tensor {
	N := x.Shape[0]
	C := x.Shape[1]
	H := x.Shape[2]
	W := x.Shape[3]
	out := NewTensor(N, C, H*2, W*2)

	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			for h := 0; h < H; h++ {
				for w := 0; w < W; w++ {
					v := x.Data[((n*C+c)*H+h)*W+w]
					out.Data[((n*C+c)*(H*2)+(h*2))*(W*2)+(w*2)] = v
					out.Data[((n*C+c)*(H*2)+(h*2))*(W*2)+(w*2+1)] = v
					out.Data[((n*C+c)*(H*2)+(h*2+1))*(W*2)+(w*2)] = v
					out.Data[((n*C+c)*(H*2)+(h*2+1))*(W*2)+(w*2+1)] = v
				}
			}
		}
	}
	return out
}
