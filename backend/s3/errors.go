package s3

import (
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/hupe1980/blobio"
)

// Error codes S3 uses for throttling and server-side hiccups.
var transientCodes = map[string]struct{}{
	"SlowDown":             {},
	"RequestTimeout":       {},
	"InternalError":        {},
	"ServiceUnavailable":   {},
	"Throttling":           {},
	"ThrottlingException":  {},
	"RequestLimitExceeded": {},
}

var notFoundCodes = map[string]struct{}{
	"NoSuchKey":    {},
	"NotFound":     {},
	"NoSuchBucket": {},
	"NoSuchUpload": {},
}

type statusCoder interface {
	HTTPStatusCode() int
}

// mapError classifies an SDK error for the retry layer.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var (
		nf  *types.NotFound
		nsk *types.NoSuchKey
		nsb *types.NoSuchBucket
		nsu *types.NoSuchUpload
	)
	if errors.As(err, &nf) || errors.As(err, &nsk) || errors.As(err, &nsb) || errors.As(err, &nsu) {
		return blobio.NotFound(err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := notFoundCodes[apiErr.ErrorCode()]; ok {
			return blobio.NotFound(err)
		}
		if _, ok := transientCodes[apiErr.ErrorCode()]; ok {
			return blobio.Transient(err)
		}
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return blobio.NotFound(err)
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
			return blobio.Transient(err)
		}
	}

	return err
}
