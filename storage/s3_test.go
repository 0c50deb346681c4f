package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/loomcms/loom"
)

type fakeS3Client struct {
	objects map[string][]byte
	failGet bool
}

func newFakeS3Client() *fakeS3Client {
	return &fakeS3Client{objects: map[string][]byte{}}
}

func (f *fakeS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.failGet {
		return nil, assertErr("not found")
	}
	body, ok := f.objects[*params.Key]
	if !ok {
		return nil, assertErr("not found")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestS3AdapterPutGetDelete(t *testing.T) {
	t.Parallel()
	client := newFakeS3Client()
	adapter := NewS3Adapter(client, "bucket", NewURLSigner([]byte("secret")))
	ctx := context.Background()

	require.NoError(t, adapter.Put(ctx, "a.txt", bytes.NewReader([]byte("hello")), 5, "text/plain"))

	r, err := adapter.Get(ctx, "a.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, adapter.Delete(ctx, "a.txt"))
	_, err = adapter.Get(ctx, "a.txt")
	assert.Equal(t, cms.KindNotFound, cms.KindOf(err))
}

func TestS3AdapterSignedURL(t *testing.T) {
	t.Parallel()
	client := newFakeS3Client()
	adapter := NewS3Adapter(client, "bucket", NewURLSigner([]byte("secret")))

	url, err := adapter.SignedURL(context.Background(), "a.txt", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}
