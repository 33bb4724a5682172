// Package fetcher performs single ranged reads against remote objects
// and re-chunks the response body into bounded-size buffers.
//
// A fetch holds at most one sub-chunk in memory at a time, so peak
// memory per fetch is O(sub-chunk size) regardless of the size of the
// requested range.
package fetcher

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/s3api"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

// RangedReader drains the response body of one ranged read as a finite
// sequence of owned buffers. It is not restartable: a fresh Open is
// required to retry a failed fetch.
type RangedReader struct {
	body         io.ReadCloser
	fetchRange   streamtypes.FetchRange
	subChunkSize int
	done         bool
}

// Open issues one ranged GetObject request for the given fetch range and
// returns a reader over its response body. Buffers yielded by Next are
// at most subChunkSize bytes long.
func Open(
	ctx context.Context,
	client s3api.S3API,
	fr streamtypes.FetchRange,
	subChunkSize int,
) (*RangedReader, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(fr.Bucket),
		Key:    aws.String(fr.Key),
		Range:  aws.String(fr.RangeHeader()),
	}

	output, err := client.GetObject(ctx, input)
	if err != nil {
		if s3api.IsNotFound(err) {
			err = s3errors.ErrObjectNotFound
		}
		return nil, s3errors.NewObjectError("fetch", fr.Bucket, fr.Key, err)
	}

	return &RangedReader{
		body:         output.Body,
		fetchRange:   fr,
		subChunkSize: subChunkSize,
	}, nil
}

// Next returns the next buffer of the response body, of length
// subChunkSize except for a final partial buffer which is returned at
// its actual length. It returns io.EOF once the body is exhausted, and a
// wrapped transport error if the body breaks mid-read. The returned
// buffer is owned by the caller.
func (r *RangedReader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}

	buf := make([]byte, r.subChunkSize)
	n, err := io.ReadFull(r.body, buf)

	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF):
		r.done = true
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Short final read: hand out the partial buffer now, report EOF
		// on the next call.
		r.done = true
		return buf[:n], nil
	default:
		r.done = true
		return nil, s3errors.NewObjectError("fetch", r.fetchRange.Bucket, r.fetchRange.Key, err)
	}
}

// Close releases the underlying response body. It is safe to call after
// Next has returned io.EOF or an error.
func (r *RangedReader) Close() error {
	return r.body.Close()
}
