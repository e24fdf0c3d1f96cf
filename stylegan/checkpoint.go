package stylegan

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// The parameter surface persists in safetensors format: an 8-byte little
// endian header length, a JSON header mapping tensor names to dtype, shape
// and byte offsets, then the raw tensor data. Everything is written as F32.

// tensorInfo describes one tensor entry in the safetensors header.
type tensorInfo struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// SaveCheckpoint writes the full named parameter set, including w_avg and
// the const seed, to path.
func (g *Generator) SaveCheckpoint(path string) error {
	header := make(map[string]tensorInfo, len(g.params))
	offset := 0
	for _, p := range g.params {
		n := p.Tensor.Numel() * 4
		header[p.Name] = tensorInfo{
			Dtype:       "F32",
			Shape:       p.Tensor.Shape,
			DataOffsets: [2]int{offset, offset + n},
		}
		offset += n
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	buf := make([]byte, 8+len(headerJSON)+offset)
	binary.LittleEndian.PutUint64(buf[:8], uint64(len(headerJSON)))
	copy(buf[8:], headerJSON)

	data := buf[8+len(headerJSON):]
	for _, p := range g.params {
		off := header[p.Name].DataOffsets[0]
		for i, v := range p.Tensor.Data {
			binary.LittleEndian.PutUint32(data[off+i*4:], math.Float32bits(v))
		}
	}
	return os.WriteFile(path, buf, 0o644)
}

// LoadCheckpoint restores every parameter from a checkpoint written by
// SaveCheckpoint. Every parameter of the generator must be present with a
// matching shape; a missing name or shape mismatch is an error.
func (g *Generator) LoadCheckpoint(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	if len(raw) < 8 {
		return fmt.Errorf("checkpoint too small: %d bytes", len(raw))
	}
	headerLen := binary.LittleEndian.Uint64(raw[:8])
	if int(headerLen)+8 > len(raw) {
		return fmt.Errorf("header length %d exceeds file size %d", headerLen, len(raw))
	}

	// The header may carry a __metadata__ key which is not a tensor.
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &entries); err != nil {
		return fmt.Errorf("parse header: %w", err)
	}
	header := make(map[string]tensorInfo, len(entries))
	for k, v := range entries {
		if k == "__metadata__" {
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(v, &info); err != nil {
			return fmt.Errorf("parse tensor %s: %w", k, err)
		}
		header[k] = info
	}
	data := raw[8+headerLen:]

	for _, p := range g.params {
		info, ok := header[p.Name]
		if !ok {
			return fmt.Errorf("checkpoint has no tensor %q", p.Name)
		}
		if info.Dtype != "F32" {
			return fmt.Errorf("tensor %q has dtype %s, only F32 is supported", p.Name, info.Dtype)
		}
		if !sameShape(info.Shape, p.Tensor.Shape) {
			return fmt.Errorf("tensor %q shape %v does not match parameter %v", p.Name, info.Shape, p.Tensor.Shape)
		}
		start, end := info.DataOffsets[0], info.DataOffsets[1]
		if start < 0 || end > len(data) || end-start != p.Tensor.Numel()*4 {
			return fmt.Errorf("tensor %q has invalid data offsets [%d,%d]", p.Name, start, end)
		}
		for i := range p.Tensor.Data {
			p.Tensor.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[start+i*4:]))
		}
	}
	return nil
}
