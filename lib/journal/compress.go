// Copyright 2026 The Provost Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the algorithm a closed chunk was
// compressed with. The tag is stored in the chunk header; the values
// are format constants and must not change.
type CompressionTag uint8

const (
	// CompressionNone stores the record stream as-is. Also the
	// automatic fallback when the configured algorithm cannot make
	// the chunk smaller.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is block-mode LZ4: cheap, modest ratio.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level. CBOR record
	// streams are highly repetitive, so this is the usual choice.
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses the settings spelling of a tag.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// errIncompressible reports that compression would not shrink the
// data; the caller falls back to CompressionNone.
var errIncompressible = errors.New("data is incompressible")

// zstd encoder and decoder are reused across calls; both are safe for
// concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("journal: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("journal: zstd decoder initialization failed: " + err.Error())
	}
}

// compressChunk compresses a chunk payload with the requested
// algorithm, falling back to CompressionNone when the output would
// not be smaller. Returns the payload and the tag actually used.
func compressChunk(data []byte, tag CompressionTag) ([]byte, CompressionTag, error) {
	var (
		compressed []byte
		err        error
	)
	switch tag {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZstd:
		compressed, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported compression tag %d", tag)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, tag, nil
}

// decompressChunk reverses compressChunk. rawLen must match the
// original payload length exactly.
func decompressChunk(data []byte, tag CompressionTag, rawLen int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(data) != rawLen {
			return nil, fmt.Errorf("uncompressed chunk is %d bytes, header says %d", len(data), rawLen)
		}
		return data, nil
	case CompressionLZ4:
		return decompressLZ4(data, rawLen)
	case CompressionZstd:
		return decompressZstd(data, rawLen)
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports incompressible input as zero bytes
	// written.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(data []byte, rawLen int) ([]byte, error) {
	destination := make([]byte, rawLen)
	read, err := lz4.UncompressBlock(data, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != rawLen {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, header says %d", read, rawLen)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(data []byte, rawLen int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, rawLen))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != rawLen {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, header says %d", len(result), rawLen)
	}
	return result, nil
}
