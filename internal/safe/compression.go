// internal/safe/compression.go
package safe

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures compression behavior
type CompressionOptions struct {
	// Minimum snapshot size in bytes before compressing
	MinSize int
	// Compression level (1=fastest, 4=best)
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 512,
		Level:   2,
	}
}

// codec wraps one encoder and one decoder. EncodeAll and DecodeAll are
// safe for concurrent use, so no pooling is needed.
type codec struct {
	opts CompressionOptions
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func newCodec(opts CompressionOptions) (*codec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &codec{opts: opts, enc: enc, dec: dec}, nil
}

// compress returns the stored form of snapshot and whether it was
// compressed. Output that does not shrink is stored raw.
func (c *codec) compress(snapshot []byte) ([]byte, bool) {
	if len(snapshot) < c.opts.MinSize {
		return snapshot, false
	}
	out := c.enc.EncodeAll(snapshot, make([]byte, 0, len(snapshot)/2))
	if len(out) >= len(snapshot) {
		return snapshot, false
	}
	return out, true
}

func (c *codec) decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return nil, fmt.Errorf("missing zstd frame header")
	}
	return c.dec.DecodeAll(data, nil)
}
