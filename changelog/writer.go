package changelog

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"sync"
)

// headerSize is CRC(4) + Compression(1) + LSN(8) + RawLen(4) + Length(4).
const headerSize = 21

// MaxFrameSize bounds the payload of a single frame.
const MaxFrameSize = 256 << 20

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

var (
	// ErrCorrupt is returned for frames that fail their checksum or cannot
	// be decoded.
	ErrCorrupt = errors.New("corrupt change log frame")
	// ErrInvalidOp is returned for entries with an unknown operation.
	ErrInvalidOp = errors.New("invalid change log operation")
	// ErrFrameTooLarge is returned for payloads above MaxFrameSize.
	ErrFrameTooLarge = errors.New("change log frame too large")
	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("change log writer is closed")
)

// Options configures a Writer.
type Options struct {
	// Compression applied to frame payloads. Default: CompressionNone.
	Compression Compression
	// StartLSN is the LSN assigned to the first appended entry minus one.
	StartLSN uint64
}

// Writer appends entries to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	opts   Options
	lsn    uint64
	closed bool
}

// NewWriter creates a Writer on top of w.
func NewWriter(w io.Writer, optFns ...func(o *Options)) *Writer {
	opts := Options{Compression: CompressionNone}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Writer{w: w, opts: opts, lsn: opts.StartLSN}
}

// Append encodes e as one frame and writes it. The assigned LSN is stored in
// the frame; e itself is not modified.
func (w *Writer) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := marshalEntry(&e)
	if err != nil {
		return err
	}
	body, c, err := compress(payload, w.opts.Compression)
	if err != nil {
		return err
	}
	if len(body) > MaxFrameSize || len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	lsn := w.lsn + 1
	frame := make([]byte, headerSize+len(body))
	frame[4] = byte(c)
	binary.LittleEndian.PutUint64(frame[5:], lsn)
	binary.LittleEndian.PutUint32(frame[13:], uint32(len(payload))) //nolint:gosec // bounded by MaxFrameSize
	binary.LittleEndian.PutUint32(frame[17:], uint32(len(body)))    //nolint:gosec // bounded by MaxFrameSize
	copy(frame[headerSize:], body)
	binary.LittleEndian.PutUint32(frame[0:], crc32.Checksum(frame[4:], crc32cTable))

	if _, err := w.w.Write(frame); err != nil {
		return err
	}
	w.lsn = lsn
	return nil
}

// LSN returns the LSN of the last appended entry.
func (w *Writer) LSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lsn
}

// Close marks the writer closed and closes the underlying writer if it is an
// io.Closer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
