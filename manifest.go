package s3stream

import (
	"context"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/validation"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

const (
	// DefaultContentType is used when content type detection fails.
	DefaultContentType = "application/octet-stream"

	// multipartContentType labels a stream concatenating several files.
	multipartContentType = "multipart/mixed"
)

// FileSpec describes one file to include in a manifest, before logical
// offsets are assigned.
type FileSpec struct {
	// Bucket is the S3 bucket holding the file's bytes
	Bucket string

	// Key is the S3 object key holding the file's bytes
	Key string

	// Size is the byte length of the file's content
	Size int64

	// DataOffset is where the content starts inside the object; non-zero
	// for files embedded in a container archive
	DataOffset int64

	// ArchivePath names the file's path inside a container archive, if any
	ArchivePath string
}

// BuildManifest lays the given files out contiguously, in order, and
// returns the manifest entries with their logical offsets assigned.
// It enforces the layout invariant the planner relies on: each entry
// starts where the previous one ends.
func BuildManifest(specs []FileSpec) ([]streamtypes.FileEntry, error) {
	entries := make([]streamtypes.FileEntry, 0, len(specs))

	var offset int64
	for _, spec := range specs {
		if err := validation.ValidateBucketName(spec.Bucket); err != nil {
			return nil, s3errors.NewError("buildManifest", err).WithKey(spec.Key)
		}
		if err := validation.ValidateObjectKey(spec.Key); err != nil {
			return nil, s3errors.NewError("buildManifest", err).WithBucket(spec.Bucket)
		}
		if spec.Size < 0 {
			return nil, s3errors.NewObjectError("buildManifest", spec.Bucket, spec.Key, s3errors.ErrInvalidInput).
				WithMessage("file size must be non-negative")
		}
		if spec.DataOffset < 0 {
			return nil, s3errors.NewObjectError("buildManifest", spec.Bucket, spec.Key, s3errors.ErrInvalidInput).
				WithMessage("data offset must be non-negative")
		}

		entries = append(entries, streamtypes.FileEntry{
			Bucket:        spec.Bucket,
			Key:           spec.Key,
			Size:          spec.Size,
			LogicalOffset: offset,
			DataOffset:    spec.DataOffset,
			ArchivePath:   spec.ArchivePath,
		})
		offset += spec.Size
	}

	return entries, nil
}

// TotalSize returns the length of the virtual concatenation described by
// the manifest.
func TotalSize(files []streamtypes.FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// ContentType guesses the media type of the stream a manifest produces:
// the type of the single file for one-entry manifests, multipart/mixed
// otherwise. Archive entries are typed by their path inside the archive
// rather than the container object's key.
func ContentType(files []streamtypes.FileEntry) string {
	switch len(files) {
	case 0:
		return DefaultContentType
	case 1:
		name := files[0].Key
		if files[0].ArchivePath != "" {
			name = files[0].ArchivePath
		}
		return contentTypeByExtension(name)
	default:
		return multipartContentType
	}
}

// contentTypeByExtension detects content type from a file name extension.
func contentTypeByExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}

// ManifestFromPrefix builds file specs for every object under the given
// bucket prefix, in key order as returned by the listing. Pagination is
// handled internally. The result feeds BuildManifest directly when a
// whole product directory should be streamed as one concatenation.
func (c *Client) ManifestFromPrefix(ctx context.Context, bucket, prefix string) ([]FileSpec, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, s3errors.NewError("manifestFromPrefix", err)
	}

	var specs []FileSpec
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(1000),
		}
		if continuationToken != nil {
			input.ContinuationToken = continuationToken
		}

		result, err := c.s3Client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, s3errors.NewError("manifestFromPrefix", err).WithBucket(bucket)
		}

		for _, obj := range result.Contents {
			specs = append(specs, FileSpec{
				Bucket: bucket,
				Key:    aws.ToString(obj.Key),
				Size:   aws.ToInt64(obj.Size),
			})
		}

		if !aws.ToBool(result.IsTruncated) {
			break
		}
		continuationToken = result.NextContinuationToken
	}

	c.logger.WithField("objects", len(specs)).Debug("listed manifest prefix")

	return specs, nil
}
