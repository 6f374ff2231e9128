package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	f.bucket, f.key, f.contentType = bucket, key, opts.ContentType
	b, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.body = b
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestPutBytes(t *testing.T) {
	fake := &fakePutter{}
	s := &Store{client: fake, host: "minio:9000", bucketName: "reports"}

	url, err := s.PutBytes(context.Background(), "reports/2026/10/18/a.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, "http://minio:9000/reports/reports/2026/10/18/a.pdf", url)
	assert.Equal(t, "reports", fake.bucket)
	assert.Equal(t, "application/pdf", fake.contentType)
	assert.Equal(t, []byte("%PDF"), fake.body)
}

func TestPutBytesError(t *testing.T) {
	s := &Store{client: &fakePutter{err: errors.New("access denied")}, bucketName: "reports"}

	_, err := s.PutBytes(context.Background(), "k", "application/pdf", nil)
	assert.EqualError(t, err, "access denied")
}
