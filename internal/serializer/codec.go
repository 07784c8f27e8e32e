// Package serializer provides the value codecs the CLI uses to decode
// stored payloads for display: applications often write values
// snappy- or gzip-compressed, or base64-wrapped.
package serializer

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
)

// Codec encodes and decodes a value payload.
type Codec interface {
	Encode([]byte) ([]byte, error)
	Decode([]byte) ([]byte, error)
}

// Lookup resolves a codec by name: "snappy", "gzip" or "base64".
func Lookup(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "snappy":
		return snappyCodec{}, nil
	case "gzip":
		return gzipCodec{}, nil
	case "base64":
		return base64Codec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec: %q", name)
	}
}

type snappyCodec struct{}

func (snappyCodec) Encode(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCodec) Decode(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

type gzipCodec struct{}

func (gzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	// close before reading the buffer so the footer is flushed
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return plain, nil
}

type base64Codec struct{}

func (base64Codec) Encode(data []byte) ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(data)), nil
}

func (base64Codec) Decode(data []byte) ([]byte, error) {
	return base64.StdEncoding.DecodeString(string(data))
}
