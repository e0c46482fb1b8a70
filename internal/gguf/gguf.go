// Package gguf reads the metadata section of GGUF model files. Only the
// header and key/value pairs are parsed; tensor data is never touched, so
// opening a multi-gigabyte model is cheap.
package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const Magic = 0x46554747 // "GGUF" little-endian

// Metadata value types as defined by the GGUF format.
type valueType uint32

const (
	typeUint8 valueType = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// ErrInvalidMagic indicates the file is not a GGUF file.
type ErrInvalidMagic struct{ Magic uint32 }

func (e ErrInvalidMagic) Error() string {
	return fmt.Sprintf("gguf: invalid magic 0x%08x", e.Magic)
}

// ErrUnsupportedVersion indicates a GGUF version this reader cannot parse.
type ErrUnsupportedVersion struct{ Version uint32 }

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("gguf: unsupported version %d", e.Version)
}

// File holds the parsed GGUF header and metadata key/value pairs.
type File struct {
	Version     uint32
	TensorCount uint64
	KV          map[string]any
}

// ReadMetadata opens path and parses the GGUF header and KV section.
func ReadMetadata(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the GGUF header and KV section from r.
func Parse(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)

	var hdr struct {
		Magic       uint32
		Version     uint32
		TensorCount uint64
		KVCount     uint64
	}
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("gguf: read header: %w", err)
	}
	if hdr.Magic != Magic {
		return nil, ErrInvalidMagic{Magic: hdr.Magic}
	}
	if hdr.Version < 2 || hdr.Version > 3 {
		return nil, ErrUnsupportedVersion{Version: hdr.Version}
	}

	file := &File{
		Version:     hdr.Version,
		TensorCount: hdr.TensorCount,
		KV:          make(map[string]any, hdr.KVCount),
	}
	for i := uint64(0); i < hdr.KVCount; i++ {
		key, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("gguf: kv %d key: %w", i, err)
		}
		var vt uint32
		if err := binary.Read(br, binary.LittleEndian, &vt); err != nil {
			return nil, fmt.Errorf("gguf: kv %q type: %w", key, err)
		}
		val, err := readValue(br, valueType(vt))
		if err != nil {
			return nil, fmt.Errorf("gguf: kv %q value: %w", key, err)
		}
		file.KV[key] = val
	}
	return file, nil
}

// String returns the string value stored under key.
func (f *File) String(key string) (string, bool) {
	s, ok := f.KV[key].(string)
	return s, ok
}

// Uint returns an integer value stored under key, widened to uint64.
func (f *File) Uint(key string) (uint64, bool) {
	switch v := f.KV[key].(type) {
	case uint8:
		return uint64(v), true
	case int8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case int16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case int32:
		return uint64(v), true
	case uint64:
		return v, true
	case int64:
		return uint64(v), true
	}
	return 0, false
}

// TokenString resolves a token id against the tokenizer.ggml.tokens array.
func (f *File) TokenString(id uint64) (string, bool) {
	arr, ok := f.KV["tokenizer.ggml.tokens"].([]any)
	if !ok || id >= uint64(len(arr)) {
		return "", false
	}
	s, ok := arr[id].(string)
	return s, ok
}

func readString(r *bufio.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	// Guard against corrupt length prefixes before allocating.
	if n > 1<<32 {
		return "", fmt.Errorf("string length %d out of range", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readValue(r *bufio.Reader, vt valueType) (any, error) {
	switch vt {
	case typeUint8:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt8:
		var v int8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint16:
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt16:
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint32:
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt32:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat32:
		var bits uint32
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, err
		}
		return math.Float32frombits(bits), nil
	case typeBool:
		var v uint8
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return v != 0, nil
	case typeString:
		return readString(r)
	case typeArray:
		var et uint32
		if err := binary.Read(r, binary.LittleEndian, &et); err != nil {
			return nil, err
		}
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		if n > 1<<32 {
			return nil, fmt.Errorf("array length %d out of range", n)
		}
		arr := make([]any, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := readValue(r, valueType(et))
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case typeUint64:
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt64:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat64:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	default:
		return nil, fmt.Errorf("unknown value type %d", vt)
	}
}
