package changelog

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Reader decodes frames written by a Writer.
type Reader struct {
	r      *bufio.Reader
	header [headerSize]byte
	offset int64
}

// NewReader creates a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next entry. It returns io.EOF at a clean end of the log
// and io.ErrUnexpectedEOF when the last frame is truncated.
func (r *Reader) Next() (Entry, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		return Entry{}, err
	}

	c := Compression(r.header[4])
	lsn := binary.LittleEndian.Uint64(r.header[5:])
	rawLen := binary.LittleEndian.Uint32(r.header[13:])
	length := binary.LittleEndian.Uint32(r.header[17:])
	if length > MaxFrameSize || rawLen > MaxFrameSize {
		return Entry{}, fmt.Errorf("%w: frame %d: %w", ErrCorrupt, lsn, ErrFrameTooLarge)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.ErrUnexpectedEOF
		}
		return Entry{}, err
	}

	crc := crc32.New(crc32cTable)
	crc.Write(r.header[4:])
	crc.Write(body)
	if crc.Sum32() != binary.LittleEndian.Uint32(r.header[0:]) {
		return Entry{}, fmt.Errorf("%w: frame %d: checksum mismatch", ErrCorrupt, lsn)
	}

	payload, err := decompress(body, c, int(rawLen))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: frame %d: %w", ErrCorrupt, lsn, err)
	}

	e := Entry{LSN: lsn}
	if err := unmarshalEntry(payload, &e); err != nil {
		return Entry{}, err
	}
	r.offset += headerSize + int64(length)
	return e, nil
}

// Offset returns the number of bytes of the complete frames returned so far.
// After a truncated or corrupt frame it is the length of the valid prefix.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Applier applies replayed entries.
type Applier interface {
	Apply(ctx context.Context, e Entry) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, e Entry) error

// Apply calls f(ctx, e).
func (f ApplierFunc) Apply(ctx context.Context, e Entry) error { return f(ctx, e) }

// Replay applies every entry of r in order and returns the number applied.
// A truncated final frame ends the replay without error; a corrupt frame or
// a failing Apply stops it.
func Replay(ctx context.Context, r io.Reader, a Applier) (int, error) {
	cr := NewReader(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		e, err := cr.Next()
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return n, nil
		case err != nil:
			return n, err
		}
		if err := a.Apply(ctx, e); err != nil {
			return n, fmt.Errorf("apply entry %d: %w", e.LSN, err)
		}
		n++
	}
}
