// Package streamtypes provides shared type definitions for the streaming module.
package streamtypes

import (
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"
)

// FileEntry is one element of the virtual concatenated sequence that a
// stream reproduces. Entries are laid out contiguously and in order:
// LogicalOffset of entry i+1 equals LogicalOffset+Size of entry i. The
// manifest builder owns that invariant; the planner assumes it.
type FileEntry struct {
	// Bucket is the S3 bucket holding this file's bytes
	Bucket string

	// Key is the S3 object key holding this file's bytes
	Key string

	// Size is the byte length of this file's logical content
	Size int64

	// LogicalOffset is this file's starting position within the overall
	// virtual concatenation
	LogicalOffset int64

	// DataOffset is the byte offset within the remote object where this
	// file's content begins. Non-zero when the file is stored inside a
	// larger container object, e.g. an uncompressed ZIP entry preceded
	// by its local header.
	DataOffset int64

	// ArchivePath names this file's path inside a container archive.
	// It is opaque to the streaming core and passed through unmodified.
	ArchivePath string
}

// Range is an inclusive byte range into the virtual concatenation.
// A nil bound means unbounded in that direction; the zero value selects
// the entire concatenation.
type Range struct {
	Start *int64
	End   *int64
}

// NewRange returns a Range bounded on both sides.
func NewRange(start, end int64) Range {
	return Range{Start: &start, End: &end}
}

// Valid reports whether the range bounds are usable: non-negative and,
// when both are present, start not beyond end.
func (r Range) Valid() bool {
	if r.Start != nil && *r.Start < 0 {
		return false
	}
	if r.End != nil && *r.End < 0 {
		return false
	}
	if r.Start != nil && r.End != nil && *r.Start > *r.End {
		return false
	}
	return true
}

// FetchRange identifies one ranged read of a remote object, with
// inclusive absolute byte offsets. Immutable value type: produced by the
// planner and consumed exactly once by a matching fetch.
type FetchRange struct {
	Bucket string
	Key    string
	Start  int64
	End    int64
}

// Len returns the number of bytes the range covers.
func (f FetchRange) Len() int64 {
	return f.End - f.Start + 1
}

// RangeHeader returns the HTTP range header representation of this fetch
// range, e.g. "bytes=0-299".
func (f FetchRange) RangeHeader() string {
	var b strings.Builder
	b.WriteString("bytes=")
	b.WriteString(strconv.FormatInt(f.Start, 10))
	b.WriteString("-")
	b.WriteString(strconv.FormatInt(f.End, 10))
	return b.String()
}

// ClientConfig holds configuration for the streaming client.
type ClientConfig struct {
	Region          string
	Endpoint        string
	MaxRetries      int
	Timeout         time.Duration
	ForcePathStyle  bool
	Prefetch        int
	CustomAWSConfig *aws.Config
	Logger          logrus.FieldLogger
}

// StreamConfig holds configuration for a single streaming invocation via
// functional options.
type StreamConfig struct {
	// Range is the logical byte window to stream; zero value streams
	// the whole concatenation
	Range Range

	// ChunkSize is the size of each ranged read request
	ChunkSize int64

	// SubChunkSize bounds the buffers yielded while draining one
	// response body
	SubChunkSize int

	// Prefetch overrides the client-level number of ranged reads kept
	// in flight ahead of the consumer
	Prefetch int
}

// Option is a functional option for configuring the streaming client.
type (
	Option func(*ClientConfig)
	// StreamOption is a functional option for configuring a single stream.
	StreamOption func(*StreamConfig)
)
