package s3stream

import (
	"context"
	"strings"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/validation"
	"github.com/CS-SI/eodag-s3stream/zipobj"
)

// ListArchive lists the entries of a zipped S3 object without
// downloading it. Only the archive's central directory is fetched,
// through a few small ranged reads.
func (c *Client) ListArchive(ctx context.Context, bucket, key string) ([]zipobj.Entry, error) {
	if err := validateObjectRef(bucket, key); err != nil {
		return nil, err
	}

	entries, err := zipobj.List(ctx, c.s3Client, bucket, key)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("entries", len(entries)).Debug("listed archive")

	return entries, nil
}

// ResolveArchiveEntry returns the FileSpec for one file stored inside a
// zipped S3 object, ready to be included in a manifest. The entry must
// be stored without compression; its DataOffset points at the content
// bytes following the entry's local header.
func (c *Client) ResolveArchiveEntry(ctx context.Context, bucket, key, name string) (FileSpec, error) {
	if err := validateObjectRef(bucket, key); err != nil {
		return FileSpec{}, err
	}

	fr, err := zipobj.Locate(ctx, c.s3Client, bucket, key, name)
	if err != nil {
		return FileSpec{}, err
	}

	return FileSpec{
		Bucket:      bucket,
		Key:         key,
		Size:        fr.Len(),
		DataOffset:  fr.Start,
		ArchivePath: name,
	}, nil
}

// SplitArchiveRef splits a "key!inner/path" reference into the archive
// object key and the entry path inside it. ok is false when the
// reference carries no entry path.
func SplitArchiveRef(ref string) (key, name string, ok bool) {
	key, name, ok = strings.Cut(ref, "!")
	if !ok || name == "" {
		return ref, "", false
	}
	return key, name, true
}

// validateObjectRef validates a bucket/key pair against S3 naming rules.
func validateObjectRef(bucket, key string) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return s3errors.NewError("archive", err).WithKey(key)
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return s3errors.NewError("archive", err).WithBucket(bucket)
	}
	return nil
}
