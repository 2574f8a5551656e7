package blobio

import "io"

// readFromBufferSize caps the read size used by Writer.ReadFrom.
const readFromBufferSize = 1 << 20

// Writer is the write stream returned by Open in "w" or "wb" mode.
//
// Data becomes visible only after Finish succeeds. Close without Finish
// abandons the upload and never commits. After Finish (successful or not)
// every write returns ErrClosed.
type Writer struct {
	u *Uploader
}

var (
	_ io.WriteCloser = (*Writer)(nil)
	_ io.ReaderFrom  = (*Writer)(nil)
)

// NewWriter wraps u in a write stream.
func NewWriter(u *Uploader) *Writer {
	return &Writer{u: u}
}

// Locator returns the destination object.
func (w *Writer) Locator() Locator { return w.u.Locator() }

// State returns the upload lifecycle state.
func (w *Writer) State() UploadState { return w.u.State() }

// Written returns the number of bytes accepted so far.
func (w *Writer) Written() int64 { return w.u.Written() }

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	return w.u.Write(p)
}

// ReadFrom copies r into the upload until EOF.
func (w *Writer) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, min(w.u.blockSize, readFromBufferSize))
	// Hide ReadFrom from io.CopyBuffer to avoid recursion.
	return io.CopyBuffer(struct{ io.Writer }{w.u}, r, buf)
}

// Finish commits everything written so far. See Uploader.Finish.
func (w *Writer) Finish() error {
	return w.u.Finish()
}

// Abort abandons the upload without committing.
func (w *Writer) Abort() error {
	return w.u.Abort()
}

// Close abandons the upload if Finish was never called; otherwise it is a no-op.
func (w *Writer) Close() error {
	if w.u.State() == UploadOpen {
		return w.u.Abort()
	}
	return nil
}
