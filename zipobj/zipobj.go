// Package zipobj inspects ZIP archives stored as S3 objects without
// downloading them. The archive's central directory is read through
// ranged requests, so listing a multi-gigabyte archive costs a handful
// of small fetches.
//
// Only entries stored without compression can be range-read in place;
// locating a compressed entry is rejected.
package zipobj

import (
	"archive/zip"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/s3api"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

// Entry describes one file inside a remote ZIP archive.
type Entry struct {
	// Name is the entry's path inside the archive
	Name string

	// Size is the uncompressed byte length of the entry
	Size int64

	// Compressed reports whether the entry is stored with compression.
	// Compressed entries can be listed but not range-read in place.
	Compressed bool
}

// List returns the entries of a zipped S3 object, in central directory
// order, without downloading the archive body.
func List(ctx context.Context, client s3api.S3API, bucket, key string) ([]Entry, error) {
	archive, err := open(ctx, client, bucket, key)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(archive.File))
	for _, f := range archive.File {
		entries = append(entries, Entry{
			Name:       f.Name,
			Size:       int64(f.UncompressedSize64),
			Compressed: f.Method != zip.Store,
		})
	}

	return entries, nil
}

// Locate resolves a named entry of a zipped S3 object to the byte region
// of the archive object holding its content. The returned fetch range
// covers exactly the entry's stored bytes; it is empty (Start > End)
// for a zero-length entry.
//
// Entries stored with compression are rejected with ErrCompressedEntry:
// their stored bytes are not the file's content.
func Locate(ctx context.Context, client s3api.S3API, bucket, key, name string) (streamtypes.FetchRange, error) {
	archive, err := open(ctx, client, bucket, key)
	if err != nil {
		return streamtypes.FetchRange{}, err
	}

	for _, f := range archive.File {
		if f.Name != name {
			continue
		}

		if f.Method != zip.Store {
			return streamtypes.FetchRange{}, s3errors.NewObjectError(
				"locateArchiveEntry", bucket, key, s3errors.ErrCompressedEntry,
			).WithMessage(name)
		}

		offset, err := f.DataOffset()
		if err != nil {
			return streamtypes.FetchRange{}, s3errors.NewObjectError("locateArchiveEntry", bucket, key, err)
		}

		return streamtypes.FetchRange{
			Bucket: bucket,
			Key:    key,
			Start:  offset,
			End:    offset + int64(f.UncompressedSize64) - 1,
		}, nil
	}

	return streamtypes.FetchRange{}, s3errors.NewObjectError(
		"locateArchiveEntry", bucket, key, s3errors.ErrNotFoundInArchive,
	).WithMessage(name)
}

// open reads the archive's central directory through ranged requests.
func open(ctx context.Context, client s3api.S3API, bucket, key string) (*zip.Reader, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if s3api.IsNotFound(err) {
			err = s3errors.ErrObjectNotFound
		}
		return nil, s3errors.NewObjectError("openArchive", bucket, key, err)
	}

	size := aws.ToInt64(head.ContentLength)

	archive, err := zip.NewReader(&objectReaderAt{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		key:    key,
		size:   size,
	}, size)
	if err != nil {
		return nil, s3errors.NewObjectError("openArchive", bucket, key, err).
			WithMessage("not a readable zip archive")
	}

	return archive, nil
}

// objectReaderAt adapts ranged GetObject requests to io.ReaderAt, which
// is what archive/zip needs to walk the end-of-central-directory record
// and the central directory. The context is carried in the struct
// because io.ReaderAt has no room for one; reads are only issued within
// the lifetime of the call that created it.
type objectReaderAt struct {
	ctx    context.Context
	client s3api.S3API
	bucket string
	key    string
	size   int64
}

func (r *objectReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}

	fr := streamtypes.FetchRange{
		Bucket: r.bucket,
		Key:    r.key,
		Start:  off,
		End:    min(off+int64(len(p))-1, r.size-1),
	}

	output, err := r.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fr.RangeHeader()),
	})
	if err != nil {
		return 0, err
	}
	defer output.Body.Close()

	n, err := io.ReadFull(output.Body, p[:fr.Len()])
	if err == io.ErrUnexpectedEOF || (err == nil && int64(n) < int64(len(p))) {
		return n, io.EOF
	}
	return n, err
}
