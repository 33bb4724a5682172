package assembler

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/testutil"
	"github.com/CS-SI/eodag-s3stream/streamtypes"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// drain pulls the sequence to completion and returns the concatenation.
func drain(t *testing.T, seq *Sequence) []byte {
	t.Helper()
	var out bytes.Buffer
	for {
		buf, err := seq.Next()
		if err == io.EOF {
			return out.Bytes()
		}
		require.NoError(t, err)
		out.Write(buf)
	}
}

func TestAssembleSingleFile(t *testing.T) {
	data := pattern(1000)
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "file.dat", data)

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "file.dat", Size: 1000},
	}

	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.Range{}, Config{
		ChunkSize:    300,
		SubChunkSize: 128,
		Prefetch:     1,
	})
	defer seq.Close()

	assert.Equal(t, data, drain(t, seq))

	reqs := store.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, testutil.RangeRequest{Bucket: "test-bucket", Key: "file.dat", Start: 0, End: 299}, reqs[0])
	assert.Equal(t, testutil.RangeRequest{Bucket: "test-bucket", Key: "file.dat", Start: 900, End: 999}, reqs[3])
}

func TestAssembleWindowAcrossFiles(t *testing.T) {
	first := pattern(500)
	second := pattern(500)
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "a.dat", first)
	store.Put("test-bucket", "b.dat", second)

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "a.dat", Size: 500, LogicalOffset: 0},
		{Bucket: "test-bucket", Key: "b.dat", Size: 500, LogicalOffset: 500},
	}

	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.NewRange(400, 600), Config{
		ChunkSize:    1000,
		SubChunkSize: 64,
		Prefetch:     1,
	})
	defer seq.Close()

	want := append(append([]byte{}, first[400:]...), second[:101]...)
	assert.Equal(t, want, drain(t, seq))
}

func TestAssembleChunkCombinations(t *testing.T) {
	// The concatenated output must reproduce the requested window exactly
	// for any chunk and sub-chunk size combination.
	data := pattern(1237)

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "file.dat", Size: 1237},
	}

	combos := []struct {
		chunkSize    int64
		subChunkSize int
	}{
		{1, 1},
		{7, 3},
		{100, 100},
		{256, 64},
		{5000, 1024},
	}

	for _, c := range combos {
		store := testutil.NewObjectStore()
		store.Put("test-bucket", "file.dat", data)

		seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.NewRange(100, 1099), Config{
			ChunkSize:    c.chunkSize,
			SubChunkSize: c.subChunkSize,
			Prefetch:     2,
		})

		got := drain(t, seq)
		assert.Equal(t, data[100:1100], got, "chunk=%d subChunk=%d", c.chunkSize, c.subChunkSize)
		seq.Close()
	}
}

func TestAssembleEmptyPlan(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "file.dat", pattern(100))

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "file.dat", Size: 100},
	}

	// Window entirely beyond the manifest extent: empty sequence, no error.
	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.NewRange(200, 300), Config{
		ChunkSize:    100,
		SubChunkSize: 100,
	})
	defer seq.Close()

	_, err := seq.Next()
	assert.Equal(t, io.EOF, err)
	assert.Empty(t, store.Requests())
}

func TestAssembleLazyStart(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "file.dat", pattern(100))

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "file.dat", Size: 100},
	}

	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.Range{}, Config{
		ChunkSize:    100,
		SubChunkSize: 100,
	})
	defer seq.Close()

	// No request is issued before the first pull.
	assert.Empty(t, store.Requests())

	_, err := seq.Next()
	require.NoError(t, err)
	assert.NotEmpty(t, store.Requests())
}

func TestAssembleRequestFailureStopsSequence(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "a.dat", pattern(100))
	store.Put("test-bucket", "b.dat", pattern(100))

	// Second request fails; the first file's bytes arrive intact.
	store.FailAfter = 2

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "a.dat", Size: 100, LogicalOffset: 0},
		{Bucket: "test-bucket", Key: "b.dat", Size: 100, LogicalOffset: 100},
	}

	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.Range{}, Config{
		ChunkSize:    100,
		SubChunkSize: 100,
		Prefetch:     1,
	})
	defer seq.Close()

	buf, err := seq.Next()
	require.NoError(t, err)
	assert.Equal(t, pattern(100), buf)

	_, err = seq.Next()
	require.Error(t, err)
	require.NotEqual(t, io.EOF, err)

	// The failure is terminal.
	_, err2 := seq.Next()
	assert.Equal(t, err, err2)

	// No request beyond the failed one was issued.
	assert.Len(t, store.Requests(), 2)
}

func TestAssembleMidBodyFailure(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "a.dat", pattern(400))
	store.Put("test-bucket", "b.dat", pattern(100))

	// Each body breaks after 200 of its bytes: two of the four expected
	// sub-chunks arrive, then the stream dies.
	store.BodyFailAt = 200

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "a.dat", Size: 400, LogicalOffset: 0},
		{Bucket: "test-bucket", Key: "b.dat", Size: 100, LogicalOffset: 400},
	}

	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.Range{}, Config{
		ChunkSize:    400,
		SubChunkSize: 100,
		Prefetch:     1,
	})
	defer seq.Close()

	for i := 0; i < 2; i++ {
		buf, err := seq.Next()
		require.NoError(t, err)
		assert.Equal(t, pattern(400)[i*100:(i+1)*100], buf)
	}

	_, err := seq.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test-bucket/a.dat")

	// Pipelining may have put the next request in flight already, but
	// nothing new is issued once the failure has surfaced.
	issued := len(store.Requests())
	assert.LessOrEqual(t, issued, 2)

	_, err = seq.Next()
	require.Error(t, err)
	assert.Len(t, store.Requests(), issued)
}

func TestAssembleOrderingWithPrefetch(t *testing.T) {
	data := pattern(900)
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "file.dat", data)

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "file.dat", Size: 900},
	}

	// A deep pipeline must not reorder output bytes.
	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.Range{}, Config{
		ChunkSize:    100,
		SubChunkSize: 37,
		Prefetch:     4,
	})
	defer seq.Close()

	assert.Equal(t, data, drain(t, seq))

	reqs := store.Requests()
	require.Len(t, reqs, 9)
	for i, req := range reqs {
		assert.Equal(t, int64(i*100), req.Start)
	}
}

func TestAssembleCloseStopsRequests(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "file.dat", pattern(1000))

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "file.dat", Size: 1000},
	}

	seq := New(store, testLogger()).Assemble(context.Background(), files, streamtypes.Range{}, Config{
		ChunkSize:    100,
		SubChunkSize: 100,
		Prefetch:     1,
	})

	_, err := seq.Next()
	require.NoError(t, err)

	require.NoError(t, seq.Close())

	// The opener observes the cancelled context; request issuing stops
	// short of the full 10-fetch plan.
	time.Sleep(50 * time.Millisecond)
	assert.Less(t, len(store.Requests()), 10)

	_, err = seq.Next()
	assert.Equal(t, s3errors.ErrStreamClosed, err)
}

func TestAssembleParentCancellation(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "file.dat", pattern(1000))

	files := []streamtypes.FileEntry{
		{Bucket: "test-bucket", Key: "file.dat", Size: 1000},
	}

	ctx, cancel := context.WithCancel(context.Background())

	seq := New(store, testLogger()).Assemble(ctx, files, streamtypes.Range{}, Config{
		ChunkSize:    100,
		SubChunkSize: 100,
		Prefetch:     1,
	})
	defer seq.Close()

	_, err := seq.Next()
	require.NoError(t, err)

	cancel()

	// Cancellation before exhaustion surfaces as an error, not as a
	// clean end of stream.
	for {
		_, err = seq.Next()
		if err != nil {
			break
		}
	}
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestAssembleCloseIsIdempotent(t *testing.T) {
	store := testutil.NewObjectStore()

	seq := New(store, testLogger()).Assemble(context.Background(), nil, streamtypes.Range{}, Config{
		ChunkSize:    100,
		SubChunkSize: 100,
	})

	require.NoError(t, seq.Close())
	require.NoError(t, seq.Close())
}
