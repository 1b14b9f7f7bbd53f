// Package tfrecord reads and writes TFRecord files and decodes the
// tf.train.Example payloads TFDS stores in them.
package tfrecord

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const maskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorrupt is returned when a length or payload checksum does not match.
var ErrCorrupt = errors.New("tfrecord: checksum mismatch")

// maxRecordSize guards against allocating on a corrupt length prefix.
const maxRecordSize = 1 << 31

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + maskDelta
}

// Reader yields records from a TFRecord stream.
type Reader struct {
	r      *bufio.Reader
	header [12]byte
	footer [4]byte
	// Offset is the index of the next record.
	Offset int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<16)}
}

func (r *Reader) readHeader() (uint64, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("read record header: %w", err)
		}
		return 0, err // io.EOF at a record boundary
	}
	length := binary.LittleEndian.Uint64(r.header[:8])
	if binary.LittleEndian.Uint32(r.header[8:]) != maskedCRC(r.header[:8]) {
		return 0, fmt.Errorf("record %d length: %w", r.Offset, ErrCorrupt)
	}
	if length > maxRecordSize {
		return 0, fmt.Errorf("record %d length %d exceeds limit: %w", r.Offset, length, ErrCorrupt)
	}
	return length, nil
}

// Next returns the next record payload, or io.EOF at the end of the stream.
func (r *Reader) Next() ([]byte, error) {
	length, err := r.readHeader()
	if err != nil {
		return nil, err
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, fmt.Errorf("read record %d payload: %w", r.Offset, err)
	}
	if _, err := io.ReadFull(r.r, r.footer[:]); err != nil {
		return nil, fmt.Errorf("read record %d checksum: %w", r.Offset, err)
	}
	if binary.LittleEndian.Uint32(r.footer[:]) != maskedCRC(data) {
		return nil, fmt.Errorf("record %d payload: %w", r.Offset, ErrCorrupt)
	}
	r.Offset++
	return data, nil
}

// Skip discards the next record without verifying its payload checksum.
func (r *Reader) Skip() error {
	length, err := r.readHeader()
	if err != nil {
		return err
	}
	if _, err := r.r.Discard(int(length) + len(r.footer)); err != nil {
		return fmt.Errorf("skip record %d: %w", r.Offset, err)
	}
	r.Offset++
	return nil
}

// Writer appends records to a TFRecord stream.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record.
func (w *Writer) Write(data []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(data))
	for _, b := range [][]byte{header[:], data, footer[:]} {
		if _, err := w.w.Write(b); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}
