// Package checkpoint reads and writes model checkpoints. A checkpoint is a
// CBOR-encoded .meta file describing the graph, train op and tensor index,
// plus a sibling data shard holding every tensor as little-endian float32
// values in index order.
package checkpoint

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

const (
	MetaSuffix    = ".meta"
	DataSuffix    = ".data-00000-of-00001"
	FormatVersion = 1
)

// Entry locates one tensor inside the data shard. Offset counts float32
// elements, not bytes.
type Entry struct {
	Name      string `cbor:"1,keyasint"`
	Shape     []int  `cbor:"2,keyasint"`
	Offset    int64  `cbor:"3,keyasint"`
	Trainable bool   `cbor:"4,keyasint"`
}

// Size is the element count of the entry.
func (e Entry) Size() int64 {
	n := int64(1)
	for _, d := range e.Shape {
		n *= int64(d)
	}
	return n
}

// Meta is the content of the .meta file.
type Meta struct {
	Version      int      `cbor:"1,keyasint"`
	Graph        []string `cbor:"2,keyasint"`
	Optimizer    string   `cbor:"3,keyasint"`
	Loss         string   `cbor:"4,keyasint"`
	Metric       string   `cbor:"5,keyasint"`
	LearningRate float64  `cbor:"6,keyasint"`
	Momentum     float64  `cbor:"7,keyasint"`
	Step         int64    `cbor:"8,keyasint"`
	Tensors      []Entry  `cbor:"9,keyasint"`
}

// Tensor is a named parameter with its values.
type Tensor struct {
	Name      string
	Shape     []int
	Data      []float32
	Trainable bool
}

// DataPath returns the data shard that belongs to a .meta path.
func DataPath(metaPath string) string {
	return strings.TrimSuffix(metaPath, MetaSuffix) + DataSuffix
}

// Write stores tensors and meta at path. The data shard is written first and
// the .meta file last, each through a rename, so a visible .meta always has
// a complete shard next to it. meta.Tensors and meta.Version are filled in.
func Write(path string, meta Meta, tensors []Tensor) error {
	meta.Version = FormatVersion
	meta.Tensors = make([]Entry, 0, len(tensors))
	var offset int64
	for _, t := range tensors {
		e := Entry{Name: t.Name, Shape: append([]int(nil), t.Shape...), Offset: offset, Trainable: t.Trainable}
		if e.Size() != int64(len(t.Data)) {
			return fmt.Errorf("tensor %s: shape %v holds %d values, got %d", t.Name, t.Shape, e.Size(), len(t.Data))
		}
		meta.Tensors = append(meta.Tensors, e)
		offset += e.Size()
	}

	err := writeAtomic(DataPath(path), func(w io.Writer) error {
		for _, t := range tensors {
			if err := writeFloats(w, t.Data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write checkpoint data: %w", err)
	}

	raw, err := cbor.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode checkpoint meta: %w", err)
	}
	err = writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(raw)
		return err
	})
	if err != nil {
		return fmt.Errorf("write checkpoint meta: %w", err)
	}
	return nil
}

// ReadMeta decodes the .meta file at path.
func ReadMeta(path string) (*Meta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read checkpoint meta: %w", err)
	}
	var meta Meta
	if err := cbor.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, path, err)
	}
	if meta.Version != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrIncompatible, meta.Version, FormatVersion)
	}
	return &meta, nil
}

// Read loads the checkpoint at path. With weightsOnly set, non-trainable
// tensors are skipped and the returned Meta has a zero Step.
func Read(path string, weightsOnly bool) (*Meta, map[string]Tensor, error) {
	meta, err := ReadMeta(path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(DataPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: data shard for %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("open checkpoint data: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat checkpoint data: %w", err)
	}
	var total int64
	for _, e := range meta.Tensors {
		if e.Offset != total {
			return nil, nil, fmt.Errorf("%w: tensor %s at offset %d, want %d", ErrCorrupt, e.Name, e.Offset, total)
		}
		total += e.Size()
	}
	if info.Size() != total*4 {
		return nil, nil, fmt.Errorf("%w: data shard has %d bytes, index needs %d", ErrCorrupt, info.Size(), total*4)
	}

	tensors := make(map[string]Tensor, len(meta.Tensors))
	for _, e := range meta.Tensors {
		if weightsOnly && !e.Trainable {
			continue
		}
		if _, err := f.Seek(e.Offset*4, io.SeekStart); err != nil {
			return nil, nil, fmt.Errorf("seek tensor %s: %w", e.Name, err)
		}
		data := make([]float32, e.Size())
		if err := readFloats(bufio.NewReader(f), data); err != nil {
			return nil, nil, fmt.Errorf("%w: tensor %s: %v", ErrCorrupt, e.Name, err)
		}
		tensors[e.Name] = Tensor{Name: e.Name, Shape: e.Shape, Data: data, Trainable: e.Trainable}
	}
	if weightsOnly {
		meta.Step = 0
	}
	return meta, tensors, nil
}

func writeAtomic(path string, fill func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFloats(w io.Writer, data []float32) error {
	var buf [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func readFloats(r io.Reader, dst []float32) error {
	var buf [4]byte
	for i := range dst {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
	}
	return nil
}
