package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"slices"
	"time"

	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/graphstore"
)

// Snapshot is a point-in-time copy of every shard's adjacency, together
// with the mutation sequence number it covers.
type Snapshot struct {
	// Seq is the coordinator sequence number at capture time. Events at
	// or below Seq are already reflected in the records.
	Seq uint64

	// CreatedAt is the capture time.
	CreatedAt time.Time

	// Records maps shard IDs to their adjacency records.
	Records map[int]graphstore.Record
}

var byteOrder = binary.LittleEndian

// Encode writes snap to w: a fixed header followed by a checksummed,
// optionally compressed payload. Shards and identities are written in
// sorted order so equal snapshots produce equal bytes.
func Encode(w io.Writer, snap *Snapshot, compression Compression) error {
	payload, err := encodePayload(snap)
	if err != nil {
		return err
	}

	stored, err := compress(payload, compression)
	if err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}
	if len(stored) > math.MaxUint32 {
		return fmt.Errorf("payload too large: %d bytes", len(stored))
	}

	header := fileHeader{
		Magic:       MagicNumber,
		Version:     FormatVersion,
		Compression: uint8(compression),
		ShardCount:  uint32(len(snap.Records)),
		Seq:         snap.Seq,
		CreatedAt:   snap.CreatedAt.UnixNano(),
		PayloadSize: uint32(len(stored)),
		Checksum:    crc32.ChecksumIEEE(stored),
	}
	if err := binary.Write(w, byteOrder, &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(stored); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode, verifying the checksum
// before touching the payload.
func Decode(r io.Reader) (*Snapshot, error) {
	var header fileHeader
	if err := binary.Read(r, byteOrder, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}
	if Compression(header.Compression) > CompressionZSTD {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCompression, header.Compression)
	}

	stored := make([]byte, header.PayloadSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if actual := crc32.ChecksumIEEE(stored); actual != header.Checksum {
		return nil, &ChecksumMismatchError{Expected: header.Checksum, Actual: actual}
	}

	payload, err := decompress(stored, Compression(header.Compression))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}

	records, err := decodePayload(payload, int(header.ShardCount))
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Seq:       header.Seq,
		CreatedAt: time.Unix(0, header.CreatedAt),
		Records:   records,
	}, nil
}

func encodePayload(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	shardIDs := make([]int, 0, len(snap.Records))
	for shardID := range snap.Records {
		shardIDs = append(shardIDs, shardID)
	}
	slices.Sort(shardIDs)

	for _, shardID := range shardIDs {
		rec := snap.Records[shardID]

		owners := make([]core.Identity, 0, len(rec))
		for id := range rec {
			owners = append(owners, id)
		}
		slices.Sort(owners)

		writeUint32(&buf, uint32(shardID))
		writeUint32(&buf, uint32(len(owners)))
		for _, owner := range owners {
			if err := writeIdentity(&buf, owner); err != nil {
				return nil, err
			}
			row := rec[owner]
			writeUint32(&buf, uint32(len(row)))
			for _, neighbor := range row {
				if err := writeIdentity(&buf, neighbor); err != nil {
					return nil, err
				}
			}
		}
	}
	return buf.Bytes(), nil
}

func decodePayload(payload []byte, shardCount int) (map[int]graphstore.Record, error) {
	r := bytes.NewReader(payload)
	records := make(map[int]graphstore.Record, shardCount)

	for i := 0; i < shardCount; i++ {
		shardID, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		ownerCount, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", shardID, err)
		}

		rec := make(graphstore.Record, ownerCount)
		for j := uint32(0); j < ownerCount; j++ {
			owner, err := readIdentity(r)
			if err != nil {
				return nil, fmt.Errorf("shard %d: %w", shardID, err)
			}
			rowLen, err := readUint32(r)
			if err != nil {
				return nil, fmt.Errorf("shard %d: %w", shardID, err)
			}
			var row []core.Identity
			if rowLen > 0 {
				row = make([]core.Identity, rowLen)
				for k := range row {
					if row[k], err = readIdentity(r); err != nil {
						return nil, fmt.Errorf("shard %d: %w", shardID, err)
					}
				}
			}
			rec[owner] = row
		}
		records[int(shardID)] = rec
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("payload has %d trailing bytes", r.Len())
	}
	return records, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeIdentity(buf *bytes.Buffer, id core.Identity) error {
	if len(id) > math.MaxUint32 {
		return fmt.Errorf("identity too long: %d bytes", len(id))
	}
	writeUint32(buf, uint32(len(id)))
	buf.WriteString(string(id))
	return nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrTruncated
	}
	return byteOrder.Uint32(b[:]), nil
}

func readIdentity(r *bytes.Reader) (core.Identity, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", ErrTruncated
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", ErrTruncated
	}
	return core.Identity(b), nil
}
