// Package s3stream provides functional options for configuring streaming behavior.
// These options follow the functional options pattern for clean, composable configuration.
package s3stream

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"

	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

// WithRegion sets the AWS region used to resolve the S3 endpoint.
// If not specified, the default credential chain's region is used.
func WithRegion(region string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing.
func WithEndpoint(endpoint string) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithMaxRetries sets the maximum number of transport-level retry
// attempts performed by the SDK for an individual request. The streaming
// core itself never retries a failed fetch.
func WithMaxRetries(maxRetries int) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual S3 requests.
// Default is no timeout (0). Values should be positive durations.
func WithTimeout(timeout time.Duration) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithClientPrefetch sets the default number of ranged reads kept in
// flight ahead of the consumer for streams created by this client.
// Streams never reorder output; prefetching only overlaps request
// round-trips. Default is 1.
func WithClientPrefetch(prefetch int) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		if prefetch > 0 {
			c.Prefetch = prefetch
		}
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithLogger sets the logger used for debug output.
// Without it the library is silent.
func WithLogger(logger logrus.FieldLogger) streamtypes.Option {
	return func(c *streamtypes.ClientConfig) {
		c.Logger = logger
	}
}

// Stream options

// WithByteRange restricts the stream to the inclusive logical byte
// window [start, end] of the concatenated manifest.
func WithByteRange(start, end int64) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.Range = streamtypes.NewRange(start, end)
	}
}

// WithRangeStart restricts the stream to logical bytes at or after start.
func WithRangeStart(start int64) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.Range.Start = &start
	}
}

// WithRangeEnd restricts the stream to logical bytes at or before end.
func WithRangeEnd(end int64) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.Range.End = &end
	}
}

// WithChunkSize sets the size of each ranged read request.
// Default is 8MB. Must be positive.
func WithChunkSize(chunkSize int64) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.ChunkSize = chunkSize
	}
}

// WithSubChunkSize bounds the buffers yielded to the consumer while a
// single response body is drained. Default is 64KB. Must be at least 1.
func WithSubChunkSize(subChunkSize int) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		c.SubChunkSize = subChunkSize
	}
}

// WithPrefetch overrides the client-level prefetch depth for one stream.
func WithPrefetch(prefetch int) streamtypes.StreamOption {
	return func(c *streamtypes.StreamConfig) {
		if prefetch > 0 {
			c.Prefetch = prefetch
		}
	}
}
