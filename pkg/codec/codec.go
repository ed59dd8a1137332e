package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Codec serializes values for the shared store. Compression is a writer-side
// option; Decode always sniffs the gzip magic so readers interoperate with
// writers regardless of their setting.
type Codec struct {
	compress bool
}

// New returns a codec. When compress is true, Encode gzips the JSON output.
func New(compress bool) *Codec {
	return &Codec{compress: compress}
}

// Encode marshals v to JSON, optionally gzipped.
func (c *Codec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	if !c.compress {
		return data, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress value: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress value: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode unmarshals data into v, transparently decompressing gzipped input.
func (c *Codec) Decode(data []byte, v any) error {
	raw, err := c.Raw(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// Raw returns the uncompressed bytes of data, decompressing when the gzip
// magic is present.
func (c *Codec) Raw(data []byte) ([]byte, error) {
	if !isGzip(data) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress value: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress value: %w", err)
	}
	return raw, nil
}

// EncodeRaw wraps already-serialized bytes, applying compression only.
func (c *Codec) EncodeRaw(data []byte) ([]byte, error) {
	if !c.compress {
		return data, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compress value: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress value: %w", err)
	}
	return buf.Bytes(), nil
}

func isGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}
