package snapshot

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies snapshot files (ASCII: "PGS1").
	MagicNumber = 0x50475331

	// FormatVersion is the current snapshot format version (v1.0.0).
	FormatVersion = 0x00010000
)

// Compression selects the payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload raw.
	CompressionNone Compression = 0

	// CompressionLZ4 uses LZ4 block compression (fast, modest ratio).
	CompressionLZ4 Compression = 1

	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidMagic       = errors.New("invalid magic number")
	ErrInvalidVersion     = errors.New("unsupported format version")
	ErrInvalidCompression = errors.New("unknown compression algorithm")
	ErrTruncated          = errors.New("snapshot truncated")
)

// fileHeader is the fixed-size header at the start of every snapshot.
type fileHeader struct {
	Magic       uint32
	Version     uint32
	Compression uint8
	Padding     [3]byte
	ShardCount  uint32
	Seq         uint64
	CreatedAt   int64 // unix nanoseconds
	PayloadSize uint32
	Checksum    uint32 // CRC32 (IEEE) of the stored payload
}

// ChecksumMismatchError is returned when the payload fails verification.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}
