package bert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/fwojciec/minisearch"
	"github.com/x448/float16"
)

// maxHeaderSize bounds the JSON header of a safetensors file.
const maxHeaderSize = 100 << 20

// Tensor is a dense float tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Len returns the number of elements implied by the shape.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// ReadSafetensors loads every tensor of a safetensors file, converting
// F16 and BF16 data to float32.
func ReadSafetensors(path string) (map[string]Tensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights: %w", err)
	}
	return decodeSafetensors(raw)
}

func decodeSafetensors(raw []byte) (map[string]Tensor, error) {
	if len(raw) < 8 {
		return nil, minisearch.Errorf(minisearch.EINVALID, "safetensors file too short")
	}
	headerLen := binary.LittleEndian.Uint64(raw[:8])
	if headerLen > maxHeaderSize || headerLen > uint64(len(raw)-8) {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid safetensors header length %d", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &header); err != nil {
		return nil, minisearch.Errorf(minisearch.EINVALID, "invalid safetensors header: %v", err)
	}
	data := raw[8+headerLen:]

	tensors := make(map[string]Tensor, len(header))
	for name, msg := range header {
		if name == "__metadata__" {
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, minisearch.Errorf(minisearch.EINVALID, "invalid entry for tensor %s: %v", name, err)
		}
		t, err := decodeTensor(name, info, data)
		if err != nil {
			return nil, err
		}
		tensors[name] = t
	}
	return tensors, nil
}

func decodeTensor(name string, info tensorInfo, data []byte) (Tensor, error) {
	t := Tensor{Shape: info.Shape}
	n := t.Len()

	var width int
	switch info.DType {
	case "F32":
		width = 4
	case "F16", "BF16":
		width = 2
	default:
		return Tensor{}, minisearch.Errorf(minisearch.EINVALID, "tensor %s has unsupported dtype %s", name, info.DType)
	}

	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > int64(len(data)) || end-start != int64(n*width) {
		return Tensor{}, minisearch.Errorf(minisearch.EINVALID, "tensor %s has invalid data offsets", name)
	}
	b := data[start:end]

	t.Data = make([]float32, n)
	switch info.DType {
	case "F32":
		for i := range t.Data {
			t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
		}
	case "F16":
		for i := range t.Data {
			t.Data[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
		}
	case "BF16":
		for i := range t.Data {
			t.Data[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(b[2*i:])) << 16)
		}
	}
	return t, nil
}

// WriteSafetensors stores tensors as F32 in the safetensors format.
func WriteSafetensors(path string, tensors map[string]Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorInfo, len(tensors))
	var offset int64
	for _, name := range names {
		t := tensors[name]
		if t.Len() != len(t.Data) {
			return minisearch.Errorf(minisearch.EINVALID, "tensor %s has %d values for shape %v", name, len(t.Data), t.Shape)
		}
		size := int64(4 * len(t.Data))
		header[name] = tensorInfo{DType: "F32", Shape: t.Shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	// Pad the header so the data section is 8-byte aligned.
	for (len(hdr)+8)%8 != 0 {
		hdr = append(hdr, ' ')
	}

	var buf bytes.Buffer
	buf.Grow(8 + len(hdr) + int(offset))
	_ = binary.Write(&buf, binary.LittleEndian, uint64(len(hdr)))
	buf.Write(hdr)
	for _, name := range names {
		for _, x := range tensors[name].Data {
			_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(x))
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write weights: %w", err)
	}
	return nil
}
