package vision

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"sort"

	"github.com/atelier-ml/atelier/internal/tensor"
)

// WeightSet maps tensor names ("conv1_1.weight", "conv1_1.bias") to frozen
// parameter tensors.
type WeightSet map[string]*tensor.Tensor

// Weights file format, little-endian:
//
//	magic   [4]byte "ATWB"
//	version uint16
//	count   uint32
//	per tensor, sorted by name:
//	  nameLen uint16, name []byte
//	  ndims   uint8,  dims []uint32
//	  data    []float32
//	crc32 uint32 over all preceding bytes
const (
	weightsMagic   = "ATWB"
	weightsVersion = 1

	maxTensorNameLen = 256
	maxTensorDims    = 8
)

// LoadWeights reads a weight set from disk. Any failure — I/O, bad magic,
// version, truncation, checksum — is a ResourceError: the network cannot be
// initialized and the process-level caller treats that as fatal.
func LoadWeights(path string) (WeightSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	set, err := decodeWeights(raw)
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	return set, nil
}

// SaveWeights writes a weight set to disk in the format LoadWeights reads.
func SaveWeights(path string, set WeightSet) error {
	data, err := encodeWeights(set)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func decodeWeights(raw []byte) (WeightSet, error) {
	if len(raw) < len(weightsMagic)+2+4+4 {
		return nil, fmt.Errorf("file too short (%d bytes)", len(raw))
	}

	body, sum := raw[:len(raw)-4], binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, ErrChecksumMismatch
	}

	r := bytes.NewReader(body)
	magic := make([]byte, len(weightsMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != weightsMagic {
		return nil, ErrInvalidMagic
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != weightsVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}

	set := make(WeightSet, count)
	for i := uint32(0); i < count; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, err
		}
		if nameLen == 0 || nameLen > maxTensorNameLen {
			return nil, fmt.Errorf("invalid tensor name length %d", nameLen)
		}
		name := make([]byte, nameLen)
		if _, err := r.Read(name); err != nil {
			return nil, err
		}

		var ndims uint8
		if err := binary.Read(r, binary.LittleEndian, &ndims); err != nil {
			return nil, err
		}
		if ndims == 0 || ndims > maxTensorDims {
			return nil, fmt.Errorf("tensor %q: invalid rank %d", name, ndims)
		}
		shape := make(tensor.Shape, ndims)
		for d := range shape {
			var dim uint32
			if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
				return nil, err
			}
			shape[d] = int(dim)
		}

		n := shape.NumElements()
		if n <= 0 || n > r.Len()/4+1 {
			return nil, fmt.Errorf("tensor %q: shape %v exceeds remaining data", name, shape)
		}
		t := tensor.New(shape)
		data := t.Data()
		buf := make([]byte, 4)
		for j := range data {
			if _, err := r.Read(buf); err != nil {
				return nil, fmt.Errorf("tensor %q: truncated payload: %w", name, err)
			}
			data[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
		}
		set[string(name)] = t
	}
	return set, nil
}

func encodeWeights(set WeightSet) ([]byte, error) {
	names := make([]string, 0, len(set))
	for name := range set {
		if len(name) == 0 || len(name) > maxTensorNameLen {
			return nil, fmt.Errorf("invalid tensor name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString(weightsMagic)
	binary.Write(&buf, binary.LittleEndian, uint16(weightsVersion)) //nolint:errcheck // bytes.Buffer never fails
	binary.Write(&buf, binary.LittleEndian, uint32(len(names)))     //nolint:errcheck

	for _, name := range names {
		t := set[name]
		if len(t.Shape()) > maxTensorDims {
			return nil, fmt.Errorf("tensor %q: rank %d too large", name, len(t.Shape()))
		}
		binary.Write(&buf, binary.LittleEndian, uint16(len(name))) //nolint:errcheck
		buf.WriteString(name)
		buf.WriteByte(uint8(len(t.Shape())))
		for _, dim := range t.Shape() {
			binary.Write(&buf, binary.LittleEndian, uint32(dim)) //nolint:errcheck
		}
		for _, v := range t.Data() {
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(v)) //nolint:errcheck
		}
	}

	binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(buf.Bytes())) //nolint:errcheck
	return buf.Bytes(), nil
}

// NetworkWeights extracts the weight set of a network, e.g. to persist a
// seeded network for reproducible runs.
func NetworkWeights(n *Network) WeightSet {
	set := make(WeightSet)
	for _, o := range n.ops {
		if o.kind != opConv {
			continue
		}
		set[o.name+".weight"] = o.weight.Clone()
		b := tensor.New(tensor.Shape{o.outC})
		copy(b.Data(), o.bias)
		set[o.name+".bias"] = b
	}
	return set
}
