package blobio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrTransient marks failures worth retrying (network, 5xx, throttling, attempt timeout).
	ErrTransient = errors.New("transient storage error")

	// ErrNotFound is returned when the addressed object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidPath is returned for malformed azfs:// locators.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidMode is returned by Open for unsupported modes.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrUpload is returned when a block could not be durably staged.
	ErrUpload = errors.New("upload failed")

	// ErrCommit is returned when the block list could not be committed.
	ErrCommit = errors.New("commit failed")

	// ErrClosed is returned by operations on a closed or finished stream.
	ErrClosed = errors.New("stream closed")

	// ErrRetriesExhausted is returned once the retry budget for a transient failure is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrRepeatedPageToken is returned when a listing backend hands out the same continuation token twice.
	ErrRepeatedPageToken = errors.New("repeated page token")
)

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
// Backends use it to classify retryable SDK failures.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// NotFound wraps err so that errors.Is(err, ErrNotFound) holds.
func NotFound(err error) error {
	if err == nil {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

// InvalidPathError indicates a malformed locator. It is raised before any RPC is issued.
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q: must be of the form azfs://<storage-account>/<container>/<path>", e.Path)
}

func (e *InvalidPathError) Is(target error) bool { return target == ErrInvalidPath }

// InvalidModeError indicates an unsupported Open mode.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid file open mode: %q", e.Mode)
}

func (e *InvalidModeError) Is(target error) bool { return target == ErrInvalidMode }

// UploadError indicates that a block could not be staged.
//
// The destination object is left absent or undefined.
// The original underlying error can be accessed via errors.Unwrap.
type UploadError struct {
	Path  string
	Block int
	cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: block %d: %v", e.Path, e.Block, e.cause)
}

func (e *UploadError) Unwrap() error { return e.cause }

func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// CommitError indicates that the ordered block list could not be committed,
// or that Finish was called on an upload that is no longer open.
type CommitError struct {
	Path   string
	Reason string
	cause  error
}

func (e *CommitError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("commit %s: %s: %v", e.Path, e.Reason, e.cause)
	}
	return fmt.Sprintf("commit %s: %s", e.Path, e.Reason)
}

func (e *CommitError) Unwrap() error { return e.cause }

func (e *CommitError) Is(target error) bool { return target == ErrCommit }

// RetriesExhaustedError is returned when a transient failure persisted past the retry budget.
// It classifies as permanent.
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	cause    error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.cause)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.cause }

func (e *RetriesExhaustedError) Is(target error) bool { return target == ErrRetriesExhausted }

// BatchItemError is the per-item failure inside a batch call.
// It never aborts sibling items.
type BatchItemError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *BatchItemError) Unwrap() error { return e.Err }

// ErrorKind is the coarse classification of an error.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTransient
	KindNotFound
	KindInvalidPath
	KindInvalidMode
	KindUpload
	KindCommit
	KindCanceled
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindInvalidPath:
		return "invalid_path"
	case KindInvalidMode:
		return "invalid_mode"
	case KindUpload:
		return "upload"
	case KindCommit:
		return "commit"
	case KindCanceled:
		return "canceled"
	default:
		return "permanent"
	}
}

// Classify maps err onto the error taxonomy.
//
// A RetriesExhaustedError is permanent even though it wraps a transient cause.
// Unknown errors are permanent.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	switch {
	case errors.Is(err, ErrUpload):
		return KindUpload
	case errors.Is(err, ErrCommit):
		return KindCommit
	case errors.Is(err, ErrInvalidPath):
		return KindInvalidPath
	case errors.Is(err, ErrInvalidMode):
		return KindInvalidMode
	case errors.Is(err, ErrRetriesExhausted):
		return KindPermanent
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	case errors.Is(err, io.ErrUnexpectedEOF):
		return KindTransient
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTransient
	}

	return KindPermanent
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return Classify(err) == KindTransient
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}
