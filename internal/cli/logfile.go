package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/vecspace"
	"github.com/hupe1980/vecspace/changelog"
)

var errLogNotOpen = errors.New("change log is not open")

// logFile is the daemon's change log. The live segment is at path. A
// rotation moves it to path+".prev", where it stays until the snapshot that
// covers it has been committed.
type logFile struct {
	mu          sync.Mutex
	path        string
	compression changelog.Compression
	w           *changelog.Writer
}

func newLogFile(path string, c changelog.Compression) *logFile {
	return &logFile{path: path, compression: c}
}

func (l *logFile) prevPath() string {
	return l.path + ".prev"
}

// replayResult describes a scan of the log segments.
type replayResult struct {
	Applied int
	LastLSN uint64
	// PrevLen and LiveLen are the lengths of the intact prefixes of the
	// previous and the live segment.
	PrevLen int64
	LiveLen int64
}

// replay scans the previous and the live segment in order and applies every
// entry with an LSN above after. Entries seen in an earlier segment are
// skipped. A nil dst only scans.
func (l *logFile) replay(ctx context.Context, after uint64, dst changelog.Applier) (replayResult, error) {
	var res replayResult
	for i, p := range []string{l.prevPath(), l.path} {
		n, last, valid, err := replaySegment(ctx, p, max(after, res.LastLSN), dst)
		res.Applied += n
		res.LastLSN = max(res.LastLSN, last)
		if err != nil {
			return res, fmt.Errorf("%s: %w", p, err)
		}
		if i == 0 {
			res.PrevLen = valid
		} else {
			res.LiveLen = valid
		}
	}
	return res, nil
}

func replaySegment(ctx context.Context, path string, after uint64, dst changelog.Applier) (applied int, last uint64, valid int64, err error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	r := changelog.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return applied, last, r.Offset(), err
		}
		e, err := r.Next()
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return applied, last, r.Offset(), nil
		case err != nil:
			return applied, last, r.Offset(), err
		}
		last = max(last, e.LSN)
		if e.LSN <= after || dst == nil {
			continue
		}
		if err := dst.Apply(ctx, e); err != nil {
			// Concurrent writers may log an update after a delete of the
			// same record.
			if e.Op == changelog.OpUpdate && errors.Is(err, vecspace.ErrNotFound) {
				continue
			}
			return applied, last, r.Offset(), fmt.Errorf("apply entry %d: %w", e.LSN, err)
		}
		applied++
	}
}

// open cuts torn tails off both segments and starts appending to the live
// one after startLSN.
func (l *logFile) open(res replayResult, startLSN uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Truncate(l.prevPath(), res.PrevLen); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := f.Truncate(res.LiveLen); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Seek(res.LiveLen, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	l.w = l.newWriter(f, startLSN)
	return nil
}

func (l *logFile) newWriter(f *os.File, startLSN uint64) *changelog.Writer {
	return changelog.NewWriter(f, func(o *changelog.Options) {
		o.Compression = l.compression
		o.StartLSN = startLSN
	})
}

// Append implements vecspace.ChangeLogSink.
func (l *logFile) Append(ctx context.Context, e changelog.Entry) error {
	l.mu.Lock()
	w := l.w
	l.mu.Unlock()
	if w == nil {
		return errLogNotOpen
	}
	return w.Append(ctx, e)
}

// LSN returns the LSN of the last appended entry.
func (l *logFile) LSN() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return 0
	}
	return l.w.LSN()
}

// Rotate closes the live segment, moves it behind any previous one and
// starts a new live segment. It returns the LSN of the last entry before the
// rotation. Writers must be paused.
func (l *logFile) Rotate() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return 0, errLogNotOpen
	}
	lsn := l.w.LSN()
	if err := l.w.Close(); err != nil {
		return 0, err
	}
	l.w = nil

	if err := l.movePrevious(); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	l.w = l.newWriter(f, lsn)
	return lsn, nil
}

// movePrevious renames the live segment to the previous one, or appends it
// there when an earlier snapshot failed and the previous segment remains.
func (l *logFile) movePrevious() error {
	prev := l.prevPath()
	if _, err := os.Stat(prev); errors.Is(err, os.ErrNotExist) {
		return os.Rename(l.path, prev)
	}

	src, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(prev, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(l.path)
}

// DropPrevious removes the previous segment once a snapshot covers it.
func (l *logFile) DropPrevious() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.prevPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close closes the live segment.
func (l *logFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Close()
	l.w = nil
	return err
}
