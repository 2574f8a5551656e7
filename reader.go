package blobio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ReadState is the lifecycle state of a Reader.
type ReadState int

const (
	// ReadOpen means the object size has not been fetched yet.
	ReadOpen ReadState = iota
	// ReadSized means the object size is known.
	ReadSized
	// ReadClosed is terminal; the buffer has been released.
	ReadClosed
)

func (s ReadState) String() string {
	switch s {
	case ReadOpen:
		return "OPEN"
	case ReadSized:
		return "SIZED"
	default:
		return "CLOSED"
	}
}

var errNegativePosition = errors.New("negative position")

// Reader is a seekable, lazily filled read stream over one object.
//
// Reads are served from a buffer of one aligned chunk (the Downloader's buffer
// size); a new chunk is fetched when the position leaves it. Seeking past the
// end is legal; reads there return 0, io.EOF.
//
// The context passed to Open is bound to the Reader and used for every RPC.
// A Reader is not safe for concurrent use; independent Readers on the same
// object are.
type Reader struct {
	ctx      context.Context
	d        *Downloader
	pos      int64
	buf      []byte
	bufStart int64
	state    ReadState
}

var (
	_ io.ReadSeekCloser = (*Reader)(nil)
	_ io.ReaderAt       = (*Reader)(nil)
	_ io.WriterTo       = (*Reader)(nil)
)

// NewReader returns a Reader over d whose RPCs run under ctx.
func NewReader(ctx context.Context, d *Downloader) *Reader {
	r := &Reader{ctx: ctx, d: d}
	if d.sizeKnown() {
		r.state = ReadSized
	}
	return r
}

// Locator returns the object being read.
func (r *Reader) Locator() Locator { return r.d.Locator() }

// State returns the current lifecycle state.
func (r *Reader) State() ReadState { return r.state }

// Tell returns the current position.
func (r *Reader) Tell() int64 { return r.pos }

// Size returns the object length, fetching it if necessary.
func (r *Reader) Size() (int64, error) {
	if r.state == ReadClosed {
		return 0, ErrClosed
	}

	size, err := r.d.Size(r.ctx)
	if err != nil {
		return 0, err
	}

	r.state = ReadSized
	return size, nil
}

// Read reads up to len(p) bytes from the current position.
// At or past the end of the object it returns 0, io.EOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r.state == ReadClosed {
		return 0, ErrClosed
	}

	size, err := r.Size()
	if err != nil {
		return 0, err
	}

	if r.pos >= size {
		return 0, io.EOF
	}

	if len(p) == 0 {
		return 0, nil
	}

	if !r.buffered(r.pos) {
		if err := r.fill(r.pos); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf[r.pos-r.bufStart:])
	r.pos += int64(n)

	return n, nil
}

// buffered reports whether pos lies inside the current buffer.
func (r *Reader) buffered(pos int64) bool {
	return len(r.buf) > 0 && pos >= r.bufStart && pos < r.bufStart+int64(len(r.buf))
}

// fill loads the aligned chunk containing pos.
func (r *Reader) fill(pos int64) error {
	chunk := int64(r.d.BufferSize())
	start := pos - pos%chunk

	data, err := r.d.ReadRange(r.ctx, start, chunk)
	if err != nil {
		return err
	}

	r.buf = data
	r.bufStart = start

	return nil
}

// Seek sets the position for the next Read.
// Seeking past the end is legal; a negative resulting position is an error.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	if r.state == ReadClosed {
		return 0, ErrClosed
	}

	var abs int64

	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		size, err := r.Size()
		if err != nil {
			return 0, err
		}
		abs = size + offset
	default:
		return 0, fmt.Errorf("seek %s: invalid whence %d", r.d.path, whence)
	}

	if abs < 0 {
		return 0, fmt.Errorf("seek %s: %w: %d", r.d.path, errNegativePosition, abs)
	}

	r.pos = abs
	return abs, nil
}

// ReadAt reads len(p) bytes at off without moving the position.
// It returns io.EOF when fewer than len(p) bytes are available.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if r.state == ReadClosed {
		return 0, ErrClosed
	}

	if off < 0 {
		return 0, fmt.Errorf("read at %s: %w: %d", r.d.path, errNegativePosition, off)
	}

	data, err := r.d.ReadRange(r.ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}

	r.state = ReadSized

	n := copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteTo streams the remainder of the object to w, chunk by chunk.
func (r *Reader) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for {
		if r.state == ReadClosed {
			return total, ErrClosed
		}

		size, err := r.Size()
		if err != nil {
			return total, err
		}

		if r.pos >= size {
			return total, nil
		}

		if !r.buffered(r.pos) {
			if err := r.fill(r.pos); err != nil {
				return total, err
			}
		}

		chunk := r.buf[r.pos-r.bufStart:]
		n, err := w.Write(chunk)
		r.pos += int64(n)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n < len(chunk) {
			return total, io.ErrShortWrite
		}
	}
}

// Close releases the buffer. Further operations return ErrClosed.
// Closing twice is a no-op.
func (r *Reader) Close() error {
	r.buf = nil
	r.state = ReadClosed
	return nil
}
