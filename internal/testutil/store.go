package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectStore is an in-memory S3 stand-in that serves ranged GetObject
// requests from byte slices. It implements the S3API interface and records
// every request it receives so tests can assert on request order and count.
type ObjectStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	requests []RangeRequest

	// FailAfter makes the Nth GetObject call (1-based) return an error
	// instead of a body. Zero disables fault injection.
	FailAfter int
	// FailErr is the error returned when FailAfter triggers.
	FailErr error
	// BodyFailAt truncates ranged bodies to the given number of bytes and
	// makes the next read fail, simulating a connection reset mid-body.
	// Zero disables it.
	BodyFailAt int
}

// RangeRequest records a single GetObject call received by the store.
type RangeRequest struct {
	Bucket string
	Key    string
	Start  int64
	End    int64
}

// NewObjectStore creates an empty in-memory object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

// Put stores an object under the given bucket and key.
func (st *ObjectStore) Put(bucket, key string, data []byte) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.objects[bucket+"/"+key] = data
}

// Requests returns a copy of all GetObject requests received so far.
func (st *ObjectStore) Requests() []RangeRequest {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]RangeRequest, len(st.requests))
	copy(out, st.requests)
	return out
}

// GetObject serves a byte range of a stored object. The Range header is
// required; requests without one receive the whole object.
func (st *ObjectStore) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	_ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st.mu.Lock()
	data, ok := st.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		st.mu.Unlock()
		return nil, &types.NoSuchKey{}
	}

	start, end := int64(0), int64(len(data))-1
	if params.Range != nil {
		var err error
		start, end, err = parseRangeHeader(aws.ToString(params.Range))
		if err != nil {
			st.mu.Unlock()
			return nil, err
		}
	}
	st.requests = append(st.requests, RangeRequest{
		Bucket: aws.ToString(params.Bucket),
		Key:    aws.ToString(params.Key),
		Start:  start,
		End:    end,
	})
	callNum := len(st.requests)
	st.mu.Unlock()

	if st.FailAfter > 0 && callNum >= st.FailAfter {
		err := st.FailErr
		if err == nil {
			err = fmt.Errorf("injected request failure")
		}
		return nil, err
	}

	if start >= int64(len(data)) {
		return nil, fmt.Errorf("range start %d beyond object size %d", start, len(data))
	}
	if end >= int64(len(data)) {
		end = int64(len(data)) - 1
	}
	body := data[start : end+1]

	var rc io.ReadCloser
	if st.BodyFailAt > 0 && st.BodyFailAt < len(body) {
		rc = io.NopCloser(&faultyReader{data: body[:st.BodyFailAt]})
	} else {
		rc = io.NopCloser(bytes.NewReader(body))
	}

	return &s3.GetObjectOutput{
		Body:          rc,
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

// HeadObject reports the size of a stored object.
func (st *ObjectStore) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	_ ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	data, ok := st.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

// ListObjectsV2 lists stored objects by prefix with pagination.
func (st *ObjectStore) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	_ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	bucket := aws.ToString(params.Bucket) + "/"
	prefix := aws.ToString(params.Prefix)

	var keys []string
	for name := range st.objects {
		if !strings.HasPrefix(name, bucket) {
			continue
		}
		key := strings.TrimPrefix(name, bucket)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	if token := aws.ToString(params.ContinuationToken); token != "" {
		for i, key := range keys {
			if key > token {
				keys = keys[i:]
				break
			}
			if i == len(keys)-1 {
				keys = nil
			}
		}
	}

	maxKeys := int32(1000)
	if params.MaxKeys != nil && *params.MaxKeys > 0 {
		maxKeys = *params.MaxKeys
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for i, key := range keys {
		if int32(i) >= maxKeys {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(keys[i-1])
			break
		}
		size := int64(len(st.objects[bucket+key]))
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(size),
		})
	}
	return out, nil
}

// parseRangeHeader parses an HTTP "bytes=start-end" header into offsets.
func parseRangeHeader(header string) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range header %q", header)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range header %q", header)
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range start %q: %w", header, err)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range end %q: %w", header, err)
	}
	return start, end, nil
}

// faultyReader yields its data then fails with a transport-style error
// instead of reporting EOF.
type faultyReader struct {
	data []byte
	off  int
}

func (r *faultyReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, fmt.Errorf("connection reset mid-body")
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}
