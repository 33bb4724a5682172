package s3stream

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/CS-SI/eodag-s3stream/errors"
	"github.com/CS-SI/eodag-s3stream/internal/testutil"
)

func storedArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestListArchive(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "product.zip", storedArchive(t, map[string][]byte{
		"granule.jp2": []byte("band data"),
	}))

	client := NewWithClient(store)

	entries, err := client.ListArchive(context.Background(), "test-bucket", "product.zip")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "granule.jp2", entries[0].Name)
	assert.Equal(t, int64(len("band data")), entries[0].Size)
	assert.False(t, entries[0].Compressed)
}

func TestListArchiveInvalidRef(t *testing.T) {
	client := NewWithClient(testutil.NewObjectStore())

	_, err := client.ListArchive(context.Background(), "NOT_VALID", "product.zip")
	require.Error(t, err)
	assert.True(t, errors.Is(err, s3errors.ErrInvalidBucketName))

	_, err = client.ListArchive(context.Background(), "test-bucket", "../escape.zip")
	require.Error(t, err)
	assert.True(t, errors.Is(err, s3errors.ErrInvalidObjectKey))
}

func TestResolveAndStreamArchiveEntry(t *testing.T) {
	content := testPattern(333)
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "product.zip", storedArchive(t, map[string][]byte{
		"B04.jp2": content,
	}))

	client := NewWithClient(store)

	spec, err := client.ResolveArchiveEntry(context.Background(), "test-bucket", "product.zip", "B04.jp2")
	require.NoError(t, err)
	assert.Equal(t, "product.zip", spec.Key)
	assert.Equal(t, int64(333), spec.Size)
	assert.Equal(t, "B04.jp2", spec.ArchivePath)
	assert.Positive(t, spec.DataOffset)

	// The resolved spec streams the entry's bytes straight out of the
	// archive object, without extraction.
	files, err := BuildManifest([]FileSpec{spec})
	require.NoError(t, err)

	stream, err := client.Stream(context.Background(), files,
		WithChunkSize(100),
		WithSubChunkSize(50),
	)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, content, collect(t, stream))
}

func TestResolveArchiveEntryMissing(t *testing.T) {
	store := testutil.NewObjectStore()
	store.Put("test-bucket", "product.zip", storedArchive(t, map[string][]byte{
		"present.dat": []byte("data"),
	}))

	client := NewWithClient(store)

	_, err := client.ResolveArchiveEntry(context.Background(), "test-bucket", "product.zip", "absent.dat")
	require.Error(t, err)
	assert.True(t, errors.Is(err, s3errors.ErrNotFoundInArchive))
}

func TestSplitArchiveRef(t *testing.T) {
	tests := []struct {
		ref      string
		wantKey  string
		wantName string
		wantOK   bool
	}{
		{
			ref:      "product.zip!granule.jp2",
			wantKey:  "product.zip",
			wantName: "granule.jp2",
			wantOK:   true,
		},
		{
			ref:      "dir/product.zip!inner/dir/file.dat",
			wantKey:  "dir/product.zip",
			wantName: "inner/dir/file.dat",
			wantOK:   true,
		},
		{
			ref:     "plain/object.dat",
			wantKey: "plain/object.dat",
			wantOK:  false,
		},
		{
			ref:     "product.zip!",
			wantKey: "product.zip!",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			key, name, ok := SplitArchiveRef(tt.ref)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
