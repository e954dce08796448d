package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// Index file layout, little endian:
//
//	magic "IVEC" | version u16 | dim u32 | count u64 | model length u16 | model bytes | count*dim float32
var indexMagic = [4]byte{'I', 'V', 'E', 'C'}

const (
	indexVersion  uint16 = 1
	maxModelName         = 1 << 10
	maxIndexCount uint64 = 1 << 32

	// decodeChunk bounds the up-front allocation; the header count is not
	// trusted until the vectors are actually read
	decodeChunk = 1 << 16
)

func encodeIndex(w io.Writer, x *flatIndex) error {
	bw := bufio.NewWriter(w)

	header := []any{
		indexMagic,
		indexVersion,
		uint32(x.dim),
		uint64(x.Len()),
		uint16(len(x.model)),
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return goerr.Wrap(err, "failed to write index header")
		}
	}
	if _, err := bw.WriteString(x.model); err != nil {
		return goerr.Wrap(err, "failed to write model name")
	}

	buf := make([]byte, 4)
	for _, f := range x.vectors {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		if _, err := bw.Write(buf); err != nil {
			return goerr.Wrap(err, "failed to write vector data")
		}
	}

	if err := bw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to flush index")
	}
	return nil
}

// decodeIndex reads an index written by encodeIndex. The header must declare
// wantDim.
func decodeIndex(r io.Reader, wantDim int) (*flatIndex, error) {
	br := bufio.NewReader(r)

	var (
		magic    [4]byte
		version  uint16
		dim      uint32
		count    uint64
		modelLen uint16
	)
	for _, v := range []any{&magic, &version, &dim, &count, &modelLen} {
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, goerr.Wrap(ErrStorageCorruption, "truncated index header", goerr.V("cause", err.Error()))
		}
	}

	if magic != indexMagic {
		return nil, goerr.Wrap(ErrStorageCorruption, "bad index magic", goerr.V("magic", string(magic[:])))
	}
	if version != indexVersion {
		return nil, goerr.Wrap(ErrStorageCorruption, "unsupported index version", goerr.V("version", version))
	}
	if int(dim) != wantDim {
		return nil, goerr.Wrap(ErrDimensionMismatch, "persisted index has unexpected dimension",
			goerr.V("expected", wantDim),
			goerr.V("actual", dim))
	}
	if modelLen > maxModelName || count > maxIndexCount {
		return nil, goerr.Wrap(ErrStorageCorruption, "implausible index header",
			goerr.V("dim", dim),
			goerr.V("count", count),
			goerr.V("model_len", modelLen))
	}

	model := make([]byte, modelLen)
	if _, err := io.ReadFull(br, model); err != nil {
		return nil, goerr.Wrap(ErrStorageCorruption, "truncated model name", goerr.V("cause", err.Error()))
	}

	x := newFlatIndex(int(dim), string(model))
	total := int(count) * int(dim)
	x.vectors = make([]float32, 0, min(total, decodeChunk))

	buf := make([]byte, 4)
	for i := 0; i < total; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, goerr.Wrap(ErrStorageCorruption, "truncated vector data",
				goerr.V("expected_floats", total),
				goerr.V("read_floats", i))
		}
		x.vectors = append(x.vectors, math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return nil, goerr.Wrap(ErrStorageCorruption, "trailing bytes after vector data")
	}

	return x, nil
}

func encodeMetadata(w io.Writer, metadata []map[string]any) error {
	if metadata == nil {
		metadata = []map[string]any{}
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(metadata); err != nil {
		return goerr.Wrap(err, "failed to encode metadata")
	}
	return nil
}

func decodeMetadata(r io.Reader) ([]map[string]any, error) {
	var metadata []map[string]any
	if err := json.NewDecoder(r).Decode(&metadata); err != nil {
		return nil, goerr.Wrap(ErrStorageCorruption, "metadata is not a JSON list of objects", goerr.V("cause", err.Error()))
	}
	return metadata, nil
}
