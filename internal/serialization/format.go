// Package serialization reads and writes model checkpoints. The format is a
// magic string, a little-endian uint32 header length, a JSON header
// describing every tensor, and the raw tensor payload:
//
//	"VSEGCKPT" | len(header) | header JSON | tensor bytes...
//
// JSON keeps the header inspectable with standard tools; tensor data stays
// binary so checkpoints load without parsing gigabytes of text.
package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vesselseg-ml/vesselseg/internal/tensor"
)

// Magic identifies checkpoint files.
const Magic = "VSEGCKPT"

// FormatVersion is bumped on incompatible layout changes.
const FormatVersion = 1

// TensorMeta locates one tensor inside the payload.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// Header is the checkpoint's JSON preamble.
type Header struct {
	Version      int          `json:"version"`
	Epoch        int          `json:"epoch"`
	Step         int          `json:"step"`
	BestDice     float64      `json:"best_dice"`
	LearningRate float64      `json:"learning_rate"`
	Tensors      []TensorMeta `json:"tensors"`
}

// NamedTensor pairs a tensor with its checkpoint name.
type NamedTensor struct {
	Name   string
	Tensor *tensor.RawTensor
}

// Checkpoint is a loaded checkpoint: the header plus tensors by name.
type Checkpoint struct {
	Header  Header
	Tensors map[string]*tensor.RawTensor
}

// Save writes a checkpoint atomically via a temporary file.
func Save(path string, header Header, tensors []NamedTensor) error {
	header.Version = FormatVersion
	header.Tensors = make([]TensorMeta, len(tensors))
	var offset int64
	for i, nt := range tensors {
		size := int64(nt.Tensor.ByteSize())
		header.Tensors[i] = TensorMeta{
			Name:   nt.Name,
			DType:  nt.Tensor.DType().String(),
			Shape:  nt.Tensor.Shape(),
			Offset: offset,
			Size:   size,
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	if _, err := f.Write([]byte(Magic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(headerJSON))); err != nil {
		return fmt.Errorf("write header length: %w", err)
	}
	if _, err := f.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, nt := range tensors {
		if _, err := f.Write(nt.Tensor.Data()); err != nil {
			return fmt.Errorf("write tensor %s: %w", nt.Name, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a checkpoint from disk.
func Load(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%s is not a checkpoint file", path)
	}

	var headerLen uint32
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	headerJSON := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerJSON); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", header.Version)
	}

	payloadStart := int64(len(Magic)) + 4 + int64(headerLen)
	ckpt := &Checkpoint{Header: header, Tensors: make(map[string]*tensor.RawTensor, len(header.Tensors))}
	for _, meta := range header.Tensors {
		dtype, err := parseDType(meta.DType)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		if int64(raw.ByteSize()) != meta.Size {
			return nil, fmt.Errorf("tensor %s: shape %v needs %d bytes, header says %d",
				meta.Name, meta.Shape, raw.ByteSize(), meta.Size)
		}
		if _, err := f.Seek(payloadStart+meta.Offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		if _, err := io.ReadFull(f, raw.Data()); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", meta.Name, err)
		}
		ckpt.Tensors[meta.Name] = raw
	}
	return ckpt, nil
}

func parseDType(s string) (tensor.DataType, error) {
	switch s {
	case "float32":
		return tensor.Float32, nil
	case "float64":
		return tensor.Float64, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q", s)
	}
}
