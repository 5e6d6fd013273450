package snapshot

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Stored payload layout: [UncompressedSize uint32][CompressedSize uint32][Data].
// CompressedSize == 0 means the data is stored raw, which also covers
// payloads the chosen algorithm could not shrink.
const blockHeaderSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

func compress(data []byte, compression Compression) ([]byte, error) {
	var compressed []byte
	var err error

	switch compression {
	case CompressionNone:
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCompression, compression)
	}
	if err != nil {
		return nil, err
	}

	// Incompressible payloads are stored raw under the same framing.
	if len(compressed) == 0 || len(compressed) >= len(data) {
		stored := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(stored[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(stored[4:], 0)
		copy(stored[blockHeaderSize:], data)
		return stored, nil
	}

	stored := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(stored[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(stored[4:], uint32(len(compressed)))
	copy(stored[blockHeaderSize:], compressed)
	return stored, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return compressed[:n], nil
}

func decompress(stored []byte, compression Compression) ([]byte, error) {
	if len(stored) < blockHeaderSize {
		return nil, ErrTruncated
	}
	uncompressedSize := binary.LittleEndian.Uint32(stored[0:])
	compressedSize := binary.LittleEndian.Uint32(stored[4:])

	if compressedSize == 0 {
		if uint32(len(stored)-blockHeaderSize) != uncompressedSize {
			return nil, ErrTruncated
		}
		return stored[blockHeaderSize:], nil
	}
	if uint32(len(stored)-blockHeaderSize) != compressedSize {
		return nil, ErrTruncated
	}
	data := stored[blockHeaderSize:]

	switch compression {
	case CompressionLZ4:
		result := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(data, result)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("decompressed size mismatch: want %d, got %d", uncompressedSize, n)
		}
		return result, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		result, err := dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, err
		}
		if uint32(len(result)) != uncompressedSize {
			return nil, fmt.Errorf("decompressed size mismatch: want %d, got %d", uncompressedSize, len(result))
		}
		return result, nil

	default:
		return nil, fmt.Errorf("%w: compressed payload with algorithm %d", ErrInvalidCompression, compression)
	}
}
