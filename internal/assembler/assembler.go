// Package assembler drives the fetch plan for a manifest through ranged
// object readers and exposes the concatenation as a single ordered,
// lazily-pulled sequence of byte buffers.
//
// Requests may be issued ahead of the consumer (bounded pipelining), but
// opened responses are handed over in plan order, so the bytes yielded
// to the consumer are never reordered.
package assembler

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/fetcher"
	"github.com/CS-SI/eodag-s3stream/internal/planner"
	"github.com/CS-SI/eodag-s3stream/internal/s3api"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

// Config carries the per-invocation parameters of an assembly.
type Config struct {
	// ChunkSize is the size of each ranged read request
	ChunkSize int64

	// SubChunkSize bounds the buffers yielded while draining one response
	SubChunkSize int

	// Prefetch is the number of ranged reads kept open ahead of the one
	// being drained. 1 means classic request pipelining; 0 is treated
	// as 1.
	Prefetch int
}

// Assembler builds ordered output sequences over a shared storage client.
// The client handle is read-only after construction and may be shared by
// concurrent assemblies.
type Assembler struct {
	client s3api.S3API
	logger logrus.FieldLogger
}

// New creates an assembler over the given storage client.
func New(client s3api.S3API, logger logrus.FieldLogger) *Assembler {
	return &Assembler{client: client, logger: logger}
}

// Assemble plans the given files against the logical range and returns
// the lazy output sequence. Planning happens immediately; no request is
// issued until the first Next call on the sequence.
func (a *Assembler) Assemble(
	ctx context.Context,
	files []streamtypes.FileEntry,
	rng streamtypes.Range,
	cfg Config,
) *Sequence {
	plans := planner.Plan(files, rng, cfg.ChunkSize)

	fetches := make([]streamtypes.FetchRange, 0, planner.TotalFetches(plans))
	for _, p := range plans {
		fetches = append(fetches, p.Ranges...)
	}

	a.logger.WithFields(logrus.Fields{
		"files":   len(files),
		"planned": len(plans),
		"fetches": len(fetches),
	}).Debug("computed fetch plan")

	prefetch := cfg.Prefetch
	if prefetch < 1 {
		prefetch = 1
	}

	seqCtx, cancel := context.WithCancel(ctx)

	return &Sequence{
		assembler: a,
		fetches:   fetches,
		cfg:       cfg,
		ctx:       seqCtx,
		cancel:    cancel,
		// Capacity prefetch-1 plus the opener's blocked send keeps at
		// most `prefetch` responses open ahead of the consumer.
		opened: make(chan openResult, prefetch-1),
	}
}

// openResult carries one opened ranged read, or the error that ended the
// opener, in plan order.
type openResult struct {
	reader *fetcher.RangedReader
	err    error
}

// Sequence is the ordered, finite, non-restartable output of an
// assembly. It is pull-based: each Next call returns the next byte
// buffer of the requested logical window. Sequence is not safe for
// concurrent use.
type Sequence struct {
	assembler *Assembler
	fetches   []streamtypes.FetchRange
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	opened    chan openResult
	current   *fetcher.RangedReader

	err    error
	closed bool
}

// Next returns the next byte buffer of the logical window, io.EOF once
// the window is exhausted, or the error that terminated the sequence.
// After a non-EOF error the sequence is dead; already-returned buffers
// remain valid but the window as a whole is incomplete.
func (s *Sequence) Next() ([]byte, error) {
	if s.closed {
		return nil, s3errors.ErrStreamClosed
	}
	if s.err != nil {
		return nil, s.err
	}

	s.startOnce.Do(func() { go s.open() })

	for {
		if s.current == nil {
			res, ok := <-s.opened
			if !ok {
				if err := s.ctx.Err(); err != nil {
					// Parent context cancelled before the plan was
					// exhausted; not a clean completion.
					s.err = s3errors.NewError("stream", err)
					return nil, s.err
				}
				s.cancel()
				s.err = io.EOF
				return nil, io.EOF
			}
			if res.err != nil {
				s.fail(res.err)
				return nil, res.err
			}
			s.current = res.reader
		}

		buf, err := s.current.Next()
		switch {
		case err == nil:
			return buf, nil
		case err == io.EOF:
			s.current.Close()
			s.current = nil
		default:
			s.current.Close()
			s.current = nil
			s.fail(err)
			return nil, err
		}
	}
}

// Close stops the sequence: no further fetch request is issued and any
// in-flight response is closed and discarded. Closing an exhausted or
// failed sequence is a no-op.
func (s *Sequence) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	if s.current != nil {
		s.current.Close()
		s.current = nil
	}

	// Release whatever the opener had already handed over. The opener
	// itself exits on the cancelled context and closes the channel.
	s.startOnce.Do(func() { close(s.opened) })
	for res := range s.opened {
		if res.reader != nil {
			res.reader.Close()
		}
	}

	return nil
}

// fail records the terminal error and stops the opener.
func (s *Sequence) fail(err error) {
	s.err = err
	s.cancel()
	s.assembler.logger.WithError(err).Debug("stream terminated")
}

// open issues the planned ranged reads in order, handing each opened
// response to the consumer. It stops on the first open failure or when
// the sequence context is cancelled, and closes the channel on exit.
func (s *Sequence) open() {
	defer close(s.opened)

	for _, fr := range s.fetches {
		if s.ctx.Err() != nil {
			return
		}

		reader, err := fetcher.Open(s.ctx, s.assembler.client, fr, s.cfg.SubChunkSize)

		select {
		case s.opened <- openResult{reader: reader, err: err}:
			if err != nil {
				return
			}
		case <-s.ctx.Done():
			if reader != nil {
				reader.Close()
			}
			return
		}
	}
}
