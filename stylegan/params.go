package stylegan

import "fmt"

// Param is one named entry of the generator's parameter surface. Names are
// structural (role + position in the architecture), identical across any
// two generators built from the same config, which makes the EMA-of-weights
// correspondence total and explicit instead of a name-string search.
type Param struct {
	Name      string
	Tensor    *Tensor
	Trainable bool
}

func (d *Dense) params(prefix string) []Param {
	return []Param{{Name: prefix + "/weight", Tensor: d.Weight, Trainable: true}}
}

func (l *Bias) params(prefix string) []Param {
	return []Param{{Name: prefix + "/bias", Tensor: l.B, Trainable: true}}
}

func (n *Noise) params(prefix string) []Param {
	return []Param{{Name: prefix + "/noise_strength", Tensor: n.Strength, Trainable: true}}
}

func (c *ModulatedConv2D) params(prefix string) []Param {
	ps := []Param{{Name: prefix + "/weight", Tensor: c.Weight, Trainable: true}}
	ps = append(ps, c.ModWeight.params(prefix+"/mod")...)
	ps = append(ps, Param{Name: prefix + "/mod/bias", Tensor: c.ModBias, Trainable: true})
	return ps
}

func (m *Mapping) params(prefix string) []Param {
	ps := m.Embedding.params(prefix + "/x_embedding")
	for i := range m.Denses {
		ps = append(ps, m.Denses[i].params(fmt.Sprintf("%s/dense_%d", prefix, i))...)
		ps = append(ps, m.Biases[i].params(fmt.Sprintf("%s/bias_%d", prefix, i))...)
	}
	return ps
}

func (s *SynthesisConstBlock) params(prefix string) []Param {
	ps := []Param{{Name: prefix + "/const", Tensor: s.Const, Trainable: true}}
	ps = append(ps, s.Conv.params(prefix+"/mod_conv")...)
	ps = append(ps, s.Noise.params(prefix)...)
	ps = append(ps, s.Bias.params(prefix)...)
	return ps
}

func (s *SynthesisBlock) params(prefix string) []Param {
	ps := s.Conv0.params(prefix + "/mod_conv_0")
	ps = append(ps, s.Noise0.params(prefix+"/0")...)
	ps = append(ps, s.Bias0.params(prefix+"/0")...)
	ps = append(ps, s.Conv1.params(prefix+"/mod_conv_1")...)
	ps = append(ps, s.Noise1.params(prefix+"/1")...)
	ps = append(ps, s.Bias1.params(prefix+"/1")...)
	return ps
}

func (r *ToRGB) params(prefix string) []Param {
	ps := r.Conv.params(prefix + "/mod_conv")
	ps = append(ps, r.Bias.params(prefix)...)
	return ps
}

func (s *Synthesis) params(prefix string) []Param {
	res := s.resolutions[0]
	ps := s.InitialBlock.params(fmt.Sprintf("%s/%dx%d/const", prefix, res, res))
	ps = append(ps, s.InitialToRGB.params(fmt.Sprintf("%s/%dx%d/ToRGB", prefix, res, res))...)
	for i, block := range s.Blocks {
		res = s.resolutions[i+1]
		ps = append(ps, block.params(fmt.Sprintf("%s/%dx%d/block", prefix, res, res))...)
		ps = append(ps, s.ToRGBs[i].params(fmt.Sprintf("%s/%dx%d/ToRGB", prefix, res, res))...)
	}
	return ps
}

// lerp: a + (b-a)*t, written into dst element-wise.
func lerpInto(dst, a, b []float32, t float32) {
	for i := range dst {
		dst[i] = a[i] + (b[i]-a[i])*t
	}
}
