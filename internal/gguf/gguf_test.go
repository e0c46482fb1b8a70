package gguf

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// kvWriter builds synthetic GGUF byte streams for tests.
type kvWriter struct{ buf bytes.Buffer }

func (w *kvWriter) u32(v uint32)  { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *kvWriter) u64(v uint64)  { _ = binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *kvWriter) str(s string)  { w.u64(uint64(len(s))); w.buf.WriteString(s) }
func (w *kvWriter) key(s string)  { w.str(s) }

func buildGGUF(t *testing.T, kvCount uint64, body func(w *kvWriter)) []byte {
	t.Helper()
	w := &kvWriter{}
	w.u32(Magic)
	w.u32(3)       // version
	w.u64(0)       // tensor count
	w.u64(kvCount) // kv count
	if body != nil {
		body(w)
	}
	return w.buf.Bytes()
}

func TestParseHeaderAndStrings(t *testing.T) {
	data := buildGGUF(t, 2, func(w *kvWriter) {
		w.key("general.architecture")
		w.u32(uint32(typeString))
		w.str("llama")
		w.key("tokenizer.chat_template")
		w.u32(uint32(typeString))
		w.str("{{ messages }}")
	})
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Version != 3 {
		t.Fatalf("version: %d", f.Version)
	}
	if s, ok := f.String("general.architecture"); !ok || s != "llama" {
		t.Fatalf("architecture: %q %v", s, ok)
	}
	if s, ok := f.String("tokenizer.chat_template"); !ok || s != "{{ messages }}" {
		t.Fatalf("chat_template: %q %v", s, ok)
	}
}

func TestParseScalarsAndArray(t *testing.T) {
	data := buildGGUF(t, 3, func(w *kvWriter) {
		w.key("llama.context_length")
		w.u32(uint32(typeUint32))
		w.u32(8192)
		w.key("general.some_float")
		w.u32(uint32(typeFloat32))
		w.u32(math.Float32bits(1.5))
		w.key("tokenizer.ggml.tokens")
		w.u32(uint32(typeArray))
		w.u32(uint32(typeString))
		w.u64(3)
		w.str("<s>")
		w.str("</s>")
		w.str("hello")
	})
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if n, ok := f.Uint("llama.context_length"); !ok || n != 8192 {
		t.Fatalf("context_length: %d %v", n, ok)
	}
	if v, ok := f.KV["general.some_float"].(float32); !ok || v != 1.5 {
		t.Fatalf("float: %v", f.KV["general.some_float"])
	}
	if s, ok := f.TokenString(1); !ok || s != "</s>" {
		t.Fatalf("token 1: %q %v", s, ok)
	}
	if _, ok := f.TokenString(99); ok {
		t.Fatalf("out-of-range token id should fail")
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	w := &kvWriter{}
	w.u32(0xdeadbeef)
	w.u32(3)
	w.u64(0)
	w.u64(0)
	_, err := Parse(bytes.NewReader(w.buf.Bytes()))
	if _, ok := err.(ErrInvalidMagic); !ok {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	w := &kvWriter{}
	w.u32(Magic)
	w.u32(1)
	w.u64(0)
	w.u64(0)
	_, err := Parse(bytes.NewReader(w.buf.Bytes()))
	if _, ok := err.(ErrUnsupportedVersion); !ok {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestParseTruncatedKV(t *testing.T) {
	data := buildGGUF(t, 1, func(w *kvWriter) {
		w.key("general.architecture")
		// type and value missing
	})
	if _, err := Parse(bytes.NewReader(data)); err == nil {
		t.Fatalf("expected error for truncated kv section")
	}
}
