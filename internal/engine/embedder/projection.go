package embedder

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// projection is the Dense module some sentence-transformers checkpoints
// stack on the pooled vector: out = W·in (+ b). The weights come from the
// module's safetensors file; the activation is taken to be the identity.
type projection struct {
	weight []float32 // row-major [outDim][inDim]
	bias   []float32 // nil when the layer has none
	inDim  int
	outDim int
}

// tensorMeta is one entry of a safetensors header.
type tensorMeta struct {
	Dtype       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// maxHeaderSize bounds the JSON header read from an untrusted file.
const maxHeaderSize = 1 << 20

func loadProjection(path string) (*projection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	defer f.Close()

	header, data, err := readSafetensors(f)
	if err != nil {
		return nil, fmt.Errorf("projection: %s: %w", path, err)
	}

	wMeta, ok := header["linear.weight"]
	if !ok {
		return nil, fmt.Errorf("projection: %s: tensor linear.weight not found", path)
	}
	if len(wMeta.Shape) != 2 {
		return nil, fmt.Errorf("projection: linear.weight must be 2-D, got shape %v", wMeta.Shape)
	}
	p := &projection{outDim: wMeta.Shape[0], inDim: wMeta.Shape[1]}
	if p.weight, err = f32Tensor(wMeta, data, p.outDim*p.inDim); err != nil {
		return nil, fmt.Errorf("projection: linear.weight: %w", err)
	}

	if bMeta, ok := header["linear.bias"]; ok {
		if len(bMeta.Shape) != 1 || bMeta.Shape[0] != p.outDim {
			return nil, fmt.Errorf("projection: linear.bias shape %v, want [%d]", bMeta.Shape, p.outDim)
		}
		if p.bias, err = f32Tensor(bMeta, data, p.outDim); err != nil {
			return nil, fmt.Errorf("projection: linear.bias: %w", err)
		}
	}
	return p, nil
}

// readSafetensors splits a safetensors stream into its tensor table and the
// raw data section. The layout is an 8-byte little-endian header length, the
// JSON header, then the tensor bytes.
func readSafetensors(r io.Reader) (map[string]tensorMeta, []byte, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, nil, fmt.Errorf("read header length: %w", err)
	}
	if n == 0 || n > maxHeaderSize {
		return nil, nil, fmt.Errorf("header length %d out of range", n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("parse header: %w", err)
	}
	header := make(map[string]tensorMeta, len(entries))
	for name, msg := range entries {
		if name == "__metadata__" {
			continue
		}
		var m tensorMeta
		if err := json.Unmarshal(msg, &m); err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", name, err)
		}
		header[name] = m
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read data: %w", err)
	}
	return header, data, nil
}

// f32Tensor decodes a float32 tensor of want elements from data.
func f32Tensor(m tensorMeta, data []byte, want int) ([]float32, error) {
	if m.Dtype != "F32" {
		return nil, fmt.Errorf("dtype %s, want F32", m.Dtype)
	}
	start, end := m.DataOffsets[0], m.DataOffsets[1]
	if start < 0 || end < start || end > int64(len(data)) {
		return nil, fmt.Errorf("data range [%d:%d] outside %d data bytes", start, end, len(data))
	}
	if end-start != int64(want)*4 {
		return nil, fmt.Errorf("%d data bytes for %d floats", end-start, want)
	}
	out := make([]float32, want)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[start+int64(i)*4:]))
	}
	return out, nil
}

// apply projects vec from inDim to outDim.
func (p *projection) apply(vec []float32) []float32 {
	out := make([]float32, p.outDim)
	for i := range out {
		var sum float32
		for j, w := range p.weight[i*p.inDim : (i+1)*p.inDim] {
			sum += w * vec[j]
		}
		if p.bias != nil {
			sum += p.bias[i]
		}
		out[i] = sum
	}
	return out
}
