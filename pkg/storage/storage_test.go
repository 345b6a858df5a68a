package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "tasks/a.yaml", want: "tasks/a.yaml"},
		{in: "/tasks//a.yaml", want: "tasks/a.yaml"},
		{in: " tasks ", want: "tasks"},
		{in: "", wantErr: true},
		{in: "/", wantErr: true},
		{in: "../etc/passwd", wantErr: true},
		{in: "tasks/../../x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeS3 keeps objects in memory and pages List results two at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if ok && !strings.Contains(rest, aws.ToString(in.Delimiter)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	local, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return map[string]Storage{
		"local": local,
		"s3":    NewS3StorageWithClient(newFakeS3(), "bucket", "taskpulse"),
	}
}

func TestStorage_ReadWriteDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Read(ctx, "tasks/a.yaml")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Write(ctx, "tasks/a.yaml", []byte("id: a\n")))
			data, err := s.Read(ctx, "tasks/a.yaml")
			require.NoError(t, err)
			assert.Equal(t, "id: a\n", string(data))

			ok, err := s.Exists(ctx, "tasks/a.yaml")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, s.Write(ctx, "tasks/a.yaml", []byte("id: a\ntitle: x\n")))
			data, err = s.Read(ctx, "tasks/a.yaml")
			require.NoError(t, err)
			assert.Equal(t, "id: a\ntitle: x\n", string(data))

			require.NoError(t, s.Delete(ctx, "tasks/a.yaml"))
			ok, err = s.Exists(ctx, "tasks/a.yaml")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, s.Delete(ctx, "tasks/a.yaml"), ErrNotFound)
		})
	}
}

func TestStorage_List(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			keys, err := s.List(ctx, "tasks")
			require.NoError(t, err)
			assert.Empty(t, keys)

			for _, k := range []string{"tasks/c.yaml", "tasks/a.yaml", "tasks/b.yaml", "tasks/nested/d.yaml", "other/e.yaml"} {
				require.NoError(t, s.Write(ctx, k, []byte("x")))
			}
			keys, err = s.List(ctx, "tasks")
			require.NoError(t, err)
			assert.Equal(t, []string{"tasks/a.yaml", "tasks/b.yaml", "tasks/c.yaml"}, keys)
		})
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Write(context.Background(), "../escape.yaml", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = s.Read(context.Background(), "tasks/../../escape.yaml")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
