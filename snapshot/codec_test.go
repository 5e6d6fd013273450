package snapshot

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pathgo/core"
	"github.com/hupe1980/pathgo/graphstore"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Seq:       42,
		CreatedAt: time.Unix(0, 1700000000000000000),
		Records: map[int]graphstore.Record{
			0: {
				"u1": {"u2", "u3"},
				"u4": nil,
			},
			1: {
				"u2": {"u1"},
				"u3": {"u1"},
			},
			2: {},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(compression.String(), func(t *testing.T) {
			snap := testSnapshot()

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, snap, compression))

			decoded, err := Decode(&buf)
			require.NoError(t, err)

			assert.Equal(t, snap.Seq, decoded.Seq)
			assert.Equal(t, snap.CreatedAt.UnixNano(), decoded.CreatedAt.UnixNano())
			require.Len(t, decoded.Records, 3)
			assert.Equal(t, []core.Identity{"u2", "u3"}, decoded.Records[0]["u1"])
			assert.Empty(t, decoded.Records[0]["u4"])
			assert.Equal(t, []core.Identity{"u1"}, decoded.Records[1]["u2"])
			assert.Empty(t, decoded.Records[2])

			// Isolated identities survive as keys with empty rows.
			_, ok := decoded.Records[0]["u4"]
			assert.True(t, ok)
		})
	}
}

func TestCodecDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Encode(&a, testSnapshot(), CompressionZSTD))
	require.NoError(t, Encode(&b, testSnapshot(), CompressionZSTD))

	assert.Equal(t, a.Bytes(), b.Bytes(), "equal snapshots must encode to equal bytes")
}

func TestCodecCompressesRepetitiveData(t *testing.T) {
	rec := make(graphstore.Record, 1000)
	for i := 0; i < 1000; i++ {
		rec[core.Identity(fmt.Sprintf("user-%04d", i))] = []core.Identity{"hub", "hub2", "hub3"}
	}
	snap := &Snapshot{Seq: 1, CreatedAt: time.Now(), Records: map[int]graphstore.Record{0: rec}}

	var raw, compressed bytes.Buffer
	require.NoError(t, Encode(&raw, snap, CompressionNone))
	require.NoError(t, Encode(&compressed, snap, CompressionZSTD))

	assert.Less(t, compressed.Len(), raw.Len()/2, "adjacency payloads should compress well")

	decoded, err := Decode(&compressed)
	require.NoError(t, err)
	assert.Len(t, decoded.Records[0], 1000)
}

func TestCodecEmptySnapshot(t *testing.T) {
	snap := &Snapshot{Seq: 0, CreatedAt: time.Now(), Records: map[int]graphstore.Record{}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap, CompressionLZ4))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Empty(t, decoded.Records)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(), CompressionNone))
	data := buf.Bytes()

	// Flip one payload byte.
	data[len(data)-1] ^= 0xff

	_, err := Decode(bytes.NewReader(data))
	require.Error(t, err)

	var mismatch *ChecksumMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(), CompressionNone))
	data := buf.Bytes()
	data[0] = 'X'

	_, err := Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(), CompressionNone))
	data := buf.Bytes()
	data[4] = 0xff

	_, err := Decode(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestDecodeRejectsTruncation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testSnapshot(), CompressionNone))
	data := buf.Bytes()

	_, err := Decode(bytes.NewReader(data[:len(data)-4]))
	assert.ErrorIs(t, err, ErrTruncated)
}
