package vectorstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestIndexCodec(t *testing.T) {
	x := newFlatIndex(4, "test-model")
	gt.NoError(t, x.add([][]float32{{1, 2, 3, 4}, {0.5, -1, 0, 9}}))

	var buf bytes.Buffer
	gt.NoError(t, encodeIndex(&buf, x))

	decoded, err := decodeIndex(bytes.NewReader(buf.Bytes()), 4)
	gt.NoError(t, err)
	gt.Equal(t, decoded.dim, 4)
	gt.Equal(t, decoded.model, "test-model")
	gt.Equal(t, decoded.Len(), 2)
	gt.Equal(t, decoded.vectors, x.vectors)

	t.Run("truncated data", func(t *testing.T) {
		_, err := decodeIndex(bytes.NewReader(buf.Bytes()[:buf.Len()-3]), 4)
		gt.True(t, errors.Is(err, ErrStorageCorruption))
	})

	t.Run("trailing bytes", func(t *testing.T) {
		_, err := decodeIndex(bytes.NewReader(append(bytes.Clone(buf.Bytes()), 0)), 4)
		gt.True(t, errors.Is(err, ErrStorageCorruption))
	})

	t.Run("unexpected dimension", func(t *testing.T) {
		_, err := decodeIndex(bytes.NewReader(buf.Bytes()), Dimension)
		gt.True(t, errors.Is(err, ErrDimensionMismatch))
	})
}

// indexHeader builds a header with no model name and no vector data
func indexHeader(t *testing.T, dim uint32, count uint64) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range []any{indexMagic, indexVersion, dim, count, uint16(0)} {
		gt.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	return buf.Bytes()
}

func TestDecodeIndexInflatedCount(t *testing.T) {
	header := indexHeader(t, Dimension, 1<<31)
	gt.Equal(t, len(header), 20)

	_, err := decodeIndex(bytes.NewReader(header), Dimension)
	gt.True(t, errors.Is(err, ErrStorageCorruption))

	t.Run("count beyond limit", func(t *testing.T) {
		_, err := decodeIndex(bytes.NewReader(indexHeader(t, Dimension, 1<<40)), Dimension)
		gt.True(t, errors.Is(err, ErrStorageCorruption))
	})

	t.Run("zero dimension", func(t *testing.T) {
		_, err := decodeIndex(bytes.NewReader(indexHeader(t, 0, 1<<31)), Dimension)
		gt.True(t, errors.Is(err, ErrDimensionMismatch))
	})
}

func TestFlatIndexSearch(t *testing.T) {
	x := newFlatIndex(2, "m")
	gt.NoError(t, x.add([][]float32{{0, 0}, {3, 4}, {1, 0}, {0, 0}}))

	hits := x.search([]float32{0, 0}, 3)
	gt.A(t, hits).Length(3)
	gt.Equal(t, hits[0], hit{id: 0, distance: 0})
	gt.Equal(t, hits[1], hit{id: 3, distance: 0})
	gt.Equal(t, hits[2], hit{id: 2, distance: 1})

	gt.A(t, x.search([]float32{0, 0}, 0)).Length(0)
	gt.A(t, x.search([]float32{0, 0}, 99)).Length(4)

	err := x.add([][]float32{{1}})
	gt.True(t, errors.Is(err, ErrDimensionMismatch))
	gt.Equal(t, x.Len(), 4)
}

func TestMetadataCodec(t *testing.T) {
	var buf bytes.Buffer
	gt.NoError(t, encodeMetadata(&buf, nil))
	decoded, err := decodeMetadata(&buf)
	gt.NoError(t, err)
	gt.Equal(t, len(decoded), 0)

	_, err = decodeMetadata(bytes.NewReader([]byte(`{"text": "not a list"}`)))
	gt.True(t, errors.Is(err, ErrStorageCorruption))
}
