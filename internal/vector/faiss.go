package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// The matrix blob uses the FAISS IndexFlatIP serialization so faiss.read_index can load it:
//
//	fourcc "IxFI" | int32 d | int64 ntotal | int64 dummy | int64 dummy | uint8 is_trained |
//	int32 metric_type | uint64 n (= ntotal*d) | n float32 values
//
// All integers and floats are little-endian.
const (
	flatIPFourCC       = "IxFI"
	flatHeaderSize     = 4 + 4 + 8 + 8 + 8 + 1 + 4 + 8
	faissDummy         = int64(1 << 20)
	metricInnerProduct = int32(0)

	// floats per write/read chunk
	flatChunk = 16 * 1024
	// largest float count whose byte length fits in an int
	maxFlatFloats = uint64(math.MaxInt / 4)
)

// writeFlatIP writes dim and the row-major matrix data as a FAISS IndexFlatIP.
func writeFlatIP(w io.Writer, dim int, data []float32) error {
	ntotal := len(data) / dim
	header := make([]byte, 0, flatHeaderSize)
	header = append(header, flatIPFourCC...)
	header = binary.LittleEndian.AppendUint32(header, uint32(int32(dim)))
	header = binary.LittleEndian.AppendUint64(header, uint64(ntotal))
	header = binary.LittleEndian.AppendUint64(header, uint64(faissDummy))
	header = binary.LittleEndian.AppendUint64(header, uint64(faissDummy))
	header = append(header, 1) // is_trained
	header = binary.LittleEndian.AppendUint32(header, uint32(metricInnerProduct))
	header = binary.LittleEndian.AppendUint64(header, uint64(len(data)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, 0, flatChunk*4)
	for start := 0; start < len(data); start += flatChunk {
		end := min(start+flatChunk, len(data))
		buf = buf[:0]
		for _, v := range data[start:end] {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
	}
	return nil
}

// readFlatIP reads a FAISS IndexFlatIP blob. size is the blob length in bytes and bounds
// the allocation; pass a negative size when it is unknown.
func readFlatIP(r io.Reader, size int64) (dim int, data []float32, err error) {
	header := make([]byte, flatHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, fmt.Errorf("%w: read header: %v", ErrCorruptData, err)
	}
	if string(header[:4]) != flatIPFourCC {
		return 0, nil, fmt.Errorf("%w: unexpected index type %q, want %q", ErrCorruptData, header[:4], flatIPFourCC)
	}
	d := int32(binary.LittleEndian.Uint32(header[4:8]))
	ntotal := int64(binary.LittleEndian.Uint64(header[8:16]))
	metric := int32(binary.LittleEndian.Uint32(header[33:37]))
	n := binary.LittleEndian.Uint64(header[37:45])

	if d <= 0 || ntotal < 0 {
		return 0, nil, fmt.Errorf("%w: invalid shape d=%d ntotal=%d", ErrCorruptData, d, ntotal)
	}
	if metric != metricInnerProduct {
		return 0, nil, fmt.Errorf("%w: metric type %d is not inner product", ErrCorruptData, metric)
	}
	// n*4 must stay within an int so the byte count and the allocation cannot wrap.
	if uint64(ntotal) > maxFlatFloats/uint64(d) {
		return 0, nil, fmt.Errorf("%w: shape d=%d ntotal=%d is too large", ErrCorruptData, d, ntotal)
	}
	if n != uint64(ntotal)*uint64(d) {
		return 0, nil, fmt.Errorf("%w: %d stored floats for %d rows of %d", ErrCorruptData, n, ntotal, d)
	}
	if size >= 0 && (size < flatHeaderSize || uint64(size-flatHeaderSize) != n*4) {
		return 0, nil, fmt.Errorf("%w: blob is %d bytes, header describes %d", ErrCorruptData, size, flatHeaderSize+n*4)
	}

	// Without a known size the header alone does not bound the allocation, so grow as rows arrive.
	total := int(n)
	if size >= 0 {
		data = make([]float32, 0, total)
	} else {
		data = make([]float32, 0, min(total, flatChunk))
	}
	buf := make([]byte, flatChunk*4)
	for start := 0; start < total; start += flatChunk {
		end := min(start+flatChunk, total)
		chunk := buf[:(end-start)*4]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return 0, nil, fmt.Errorf("%w: read vectors: %v", ErrCorruptData, err)
		}
		for i := 0; i < end-start; i++ {
			data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(chunk[i*4:])))
		}
	}
	return int(d), data, nil
}
