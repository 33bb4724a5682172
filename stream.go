package s3stream

import (
	"context"
	"io"

	"github.com/gabriel-vasile/mimetype"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/assembler"
	"github.com/CS-SI/eodag-s3stream/internal/validation"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

// Stream downloads the given manifest of files as one logically
// concatenated byte stream, without ever holding a whole object in
// memory. The manifest describes a virtual sequence of files, each a
// region of one remote object; options restrict the logical byte window
// and tune chunking.
//
// The stream is lazy: no bytes are fetched until the consumer pulls the
// first buffer. It is finite, ordered, and not restartable. An empty
// manifest, or a window that excludes every file, yields an immediately
// exhausted stream rather than an error.
//
// Returns:
//   - *Stream: the pull-driven sequence of byte buffers
//   - error: invalid manifest entries or stream options
//
// Example:
//
//	stream, err := client.Stream(ctx, files,
//	    s3stream.WithByteRange(0, 1<<20),
//	    s3stream.WithChunkSize(256*1024),
//	)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    chunk, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // consume chunk
//	}
func (c *Client) Stream(
	ctx context.Context,
	files []streamtypes.FileEntry,
	opts ...streamtypes.StreamOption,
) (*Stream, error) {
	cfg := streamtypes.StreamConfig{
		ChunkSize:    DefaultChunkSize,
		SubChunkSize: DefaultSubChunkSize,
		Prefetch:     c.clientCfg.Prefetch,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ChunkSize <= 0 {
		return nil, s3errors.NewError("stream", s3errors.ErrInvalidInput).
			WithMessage("chunk size must be positive")
	}
	if cfg.SubChunkSize < 1 {
		return nil, s3errors.NewError("stream", s3errors.ErrInvalidInput).
			WithMessage("sub-chunk size must be at least 1")
	}
	if !cfg.Range.Valid() {
		return nil, s3errors.NewError("stream", s3errors.ErrInvalidRange)
	}

	for _, entry := range files {
		if err := validation.ValidateBucketName(entry.Bucket); err != nil {
			return nil, s3errors.NewError("stream", err).WithKey(entry.Key)
		}
		if err := validation.ValidateObjectKey(entry.Key); err != nil {
			return nil, s3errors.NewError("stream", err).WithBucket(entry.Bucket)
		}
		if entry.Size < 0 || entry.DataOffset < 0 {
			return nil, s3errors.NewObjectError("stream", entry.Bucket, entry.Key, s3errors.ErrInvalidInput).
				WithMessage("file size and data offset must be non-negative")
		}
	}

	seq := assembler.New(c.s3Client, c.logger).Assemble(ctx, files, cfg.Range, assembler.Config{
		ChunkSize:    cfg.ChunkSize,
		SubChunkSize: cfg.SubChunkSize,
		Prefetch:     cfg.Prefetch,
	})

	return &Stream{seq: seq}, nil
}

// Stream is an ordered, finite, pull-driven sequence of byte buffers
// reproducing a logical byte window over a manifest. Not safe for
// concurrent use.
type Stream struct {
	seq *assembler.Sequence
}

// Next returns the next byte buffer of the stream. The buffer is owned
// by the caller. It returns io.EOF when the window is exhausted; any
// other error terminates the stream at that point and buffers already
// returned must be treated as an unusable prefix of the window.
func (s *Stream) Next() ([]byte, error) {
	return s.seq.Next()
}

// Close cancels the stream. No further fetch request is issued; any
// in-flight request is discarded. Closing an exhausted stream is a
// no-op.
func (s *Stream) Close() error {
	return s.seq.Close()
}

// WriteTo drains the whole stream into w, returning the number of bytes
// written. The stream is closed afterwards.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	defer s.Close()

	var written int64
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}

// Reader adapts the stream to an io.ReadCloser for hosts that speak io.
func (s *Stream) Reader() io.ReadCloser {
	return &streamReader{stream: s}
}

// streamReader carries leftover bytes between Read calls so arbitrary
// reader buffer sizes work against fixed-size stream chunks.
type streamReader struct {
	stream   *Stream
	leftover []byte
	err      error
}

func (r *streamReader) Read(p []byte) (int, error) {
	for len(r.leftover) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		chunk, err := r.stream.Next()
		if err != nil {
			r.err = err
			return 0, err
		}
		r.leftover = chunk
	}

	n := copy(p, r.leftover)
	r.leftover = r.leftover[n:]
	return n, nil
}

func (r *streamReader) Close() error {
	return r.stream.Close()
}

// SniffContentType detects the media type of the stream from its leading
// bytes, typically the first buffer returned by Next. It falls back to
// application/octet-stream when the content is unrecognized.
func SniffContentType(head []byte) string {
	if mt := mimetype.Detect(head); mt != nil {
		return mt.String()
	}
	return DefaultContentType
}
