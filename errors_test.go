package blobio_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/blobio"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want blobio.ErrorKind
	}{
		{"nil", nil, blobio.KindNone},
		{"transient", blobio.Transient(errors.New("503")), blobio.KindTransient},
		{"wrapped transient", fmt.Errorf("op: %w", blobio.Transient(errors.New("reset"))), blobio.KindTransient},
		{"not found", blobio.NotFound(errors.New("404")), blobio.KindNotFound},
		{"bare not found", blobio.NotFound(nil), blobio.KindNotFound},
		{"invalid path", &blobio.InvalidPathError{Path: "x"}, blobio.KindInvalidPath},
		{"invalid mode", &blobio.InvalidModeError{Mode: "a"}, blobio.KindInvalidMode},
		{"upload", &blobio.UploadError{Path: "x", Block: 2}, blobio.KindUpload},
		{"commit", &blobio.CommitError{Path: "x", Reason: "r"}, blobio.KindCommit},
		{"exhausted", &blobio.RetriesExhaustedError{Op: "op", Attempts: 3}, blobio.KindPermanent},
		{"canceled", context.Canceled, blobio.KindCanceled},
		{"deadline", context.DeadlineExceeded, blobio.KindTransient},
		{"unexpected eof", io.ErrUnexpectedEOF, blobio.KindTransient},
		{"net timeout", timeoutErr{}, blobio.KindTransient},
		{"unknown", errors.New("denied"), blobio.KindPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, blobio.Classify(tt.err))
		})
	}
}

func TestTransient_Nil(t *testing.T) {
	assert.NoError(t, blobio.Transient(nil))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "not_found", blobio.KindNotFound.String())
	assert.Equal(t, "permanent", blobio.KindPermanent.String())
	assert.Equal(t, "invalid_path", blobio.KindInvalidPath.String())
}

func TestBatchItemError(t *testing.T) {
	cause := blobio.Transient(errors.New("throttled"))
	err := &blobio.BatchItemError{Path: "azfs://account/container/k", Kind: blobio.KindTransient, Err: cause}

	assert.ErrorIs(t, err, blobio.ErrTransient)
	assert.Contains(t, err.Error(), "azfs://account/container/k")
	assert.Contains(t, err.Error(), "transient")
}

func TestInvalidModeError(t *testing.T) {
	err := &blobio.InvalidModeError{Mode: "a+"}
	assert.ErrorIs(t, err, blobio.ErrInvalidMode)
	assert.Equal(t, `invalid file open mode: "a+"`, err.Error())
}
