package results

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/dd0wney/cluso-foggy/pkg/stats"
	"github.com/golang/snappy"
)

// Extension of result matrix files.
const Extension = ".fgy"

var magic = [4]byte{'F', 'G', 'Y', '1'}

// Kind tags the element type of a result file.
type Kind byte

const (
	KindFloat Kind = 1
	KindCount Kind = 2
)

var (
	ErrFormat   = errors.New("not a result file")
	ErrKind     = errors.New("unexpected result kind")
	ErrChecksum = errors.New("result file checksum mismatch")
)

// maxCells bounds the matrix size accepted when reading.
const maxCells = 1 << 31

// Format: [Magic:4][Kind:1][Rows:4][Cols:4][BlockLen:4][Block:N][Checksum:4]
// Block is the snappy-compressed little-endian payload, Checksum the
// CRC32 of Block. Integers in the header are big-endian.

// WriteMatrix writes m as a float file and returns the bytes written.
func WriteMatrix(w io.Writer, m *stats.Matrix) (int64, error) {
	payload := make([]byte, 8*len(m.Data))
	for i, v := range m.Data {
		binary.LittleEndian.PutUint64(payload[8*i:], math.Float64bits(v))
	}
	return writeBlock(w, KindFloat, m.Rows, m.Cols, payload)
}

// WriteCounts writes m as a count file and returns the bytes written.
func WriteCounts(w io.Writer, m *stats.CountMatrix) (int64, error) {
	payload := make([]byte, 8*len(m.Data))
	for i, v := range m.Data {
		binary.LittleEndian.PutUint64(payload[8*i:], uint64(v))
	}
	return writeBlock(w, KindCount, m.Rows, m.Cols, payload)
}

// ReadMatrix reads a float file.
func ReadMatrix(r io.Reader) (*stats.Matrix, error) {
	rows, cols, payload, err := readBlock(r, KindFloat)
	if err != nil {
		return nil, err
	}
	m := stats.NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[8*i:]))
	}
	return m, nil
}

// ReadCounts reads a count file.
func ReadCounts(r io.Reader) (*stats.CountMatrix, error) {
	rows, cols, payload, err := readBlock(r, KindCount)
	if err != nil {
		return nil, err
	}
	m := stats.NewCountMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = int64(binary.LittleEndian.Uint64(payload[8*i:]))
	}
	return m, nil
}

// ReadMatrixFile reads a float file from disk. Count files are converted.
func ReadMatrixFile(path string) (*stats.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(len(magic) + 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrFormat)
	}
	if Kind(head[len(magic)]) == KindCount {
		c, err := ReadCounts(br)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return c.Float(), nil
	}
	m, err := ReadMatrix(br)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func writeBlock(w io.Writer, kind Kind, rows, cols int, payload []byte) (int64, error) {
	block := snappy.Encode(nil, payload)

	var buf bytes.Buffer
	buf.Grow(len(block) + 21)
	buf.Write(magic[:])
	buf.WriteByte(byte(kind))
	_ = binary.Write(&buf, binary.BigEndian, uint32(rows))
	_ = binary.Write(&buf, binary.BigEndian, uint32(cols))
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(block)))
	buf.Write(block)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(block))

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("failed to write result block: %w", err)
	}
	return int64(n), nil
}

func readBlock(r io.Reader, want Kind) (rows, cols int, payload []byte, err error) {
	var head [17]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: short header: %v", ErrFormat, err)
	}
	if !bytes.Equal(head[:4], magic[:]) {
		return 0, 0, nil, ErrFormat
	}
	if kind := Kind(head[4]); kind != want {
		return 0, 0, nil, fmt.Errorf("%w: got %d, want %d", ErrKind, kind, want)
	}
	rows = int(binary.BigEndian.Uint32(head[5:9]))
	cols = int(binary.BigEndian.Uint32(head[9:13]))
	blockLen := binary.BigEndian.Uint32(head[13:17])
	if uint64(rows)*uint64(cols) > maxCells {
		return 0, 0, nil, fmt.Errorf("%w: %d x %d matrix too large", ErrFormat, rows, cols)
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(r, block); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: short block: %v", ErrFormat, err)
	}
	var sum uint32
	if err := binary.Read(r, binary.BigEndian, &sum); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: missing checksum: %v", ErrFormat, err)
	}
	if crc32.ChecksumIEEE(block) != sum {
		return 0, 0, nil, ErrChecksum
	}

	payload, err = snappy.Decode(nil, block)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(payload) != 8*rows*cols {
		return 0, 0, nil, fmt.Errorf("%w: %d payload bytes for %d x %d", ErrFormat, len(payload), rows, cols)
	}
	return rows, cols, payload, nil
}
